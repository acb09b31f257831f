// Package render writes the archive out as markdown: one file per user, one per cast.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/castarchive/castarchive/internal/db"
	"github.com/castarchive/castarchive/internal/models"
	"github.com/castarchive/castarchive/pkg/logging"
	"github.com/castarchive/castarchive/pkg/telemetry"
)

// UsersDir is the directory under the output root holding user files
const UsersDir = "_users_"

const batchSize = 500

// Renderer writes archived users and casts to markdown files
type Renderer struct {
	fs     afero.Fs
	outDir string
	users  *db.UserRepository
	casts  *db.CastRepository
	logger *zap.Logger
}

// NewRenderer creates a renderer writing below outDir on fs
func NewRenderer(fs afero.Fs, outDir string, repo *db.Repository, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = logging.WithComponent("render")
	}
	return &Renderer{
		fs:     fs,
		outDir: outDir,
		users:  repo.Users(),
		casts:  repo.Casts(),
		logger: logger,
	}
}

// Result counts files written and files that already existed
type Result struct {
	Written int `json:"written"`
	Skipped int `json:"skipped"`
}

// Render writes every user file and then every cast file
func (r *Renderer) Render(ctx context.Context) (users, casts Result, err error) {
	if users, err = r.RenderUsers(ctx); err != nil {
		return users, casts, err
	}
	casts, err = r.RenderCasts(ctx)
	return users, casts, err
}

// RenderUsers writes <out>/_users_/<username>.md for each archived user.
// Existing files are left untouched.
func (r *Renderer) RenderUsers(ctx context.Context) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "render.users")
	defer span.End()

	var res Result
	dir := path.Join(r.outDir, UsersDir)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	users, err := r.users.List(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list users: %w", err)
	}
	r.logger.Info("Rendering users", zap.Int("users", len(users)))

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		file := path.Join(dir, UserFile(u))
		if exists, err := afero.Exists(r.fs, file); err != nil {
			return res, err
		} else if exists {
			res.Skipped++
			continue
		}

		casts, err := r.casts.ListByAuthor(ctx, u.FID, 0)
		if err != nil {
			return res, fmt.Errorf("failed to list casts of %d: %w", u.FID, err)
		}
		view := userView{
			FID:         u.FID,
			Username:    username(u),
			DisplayName: u.DisplayName,
			Avatar:      u.Avatar,
			Bio:         u.Bio,
		}
		for _, c := range casts {
			view.Hashes = append(view.Hashes, strings.TrimPrefix(c.Hash, "0x"))
		}

		var buf bytes.Buffer
		if err := userTemplate.Execute(&buf, view); err != nil {
			return res, fmt.Errorf("failed to render user %d: %w", u.FID, err)
		}
		if err := afero.WriteFile(r.fs, file, buf.Bytes(), 0o644); err != nil {
			return res, fmt.Errorf("failed to write %s: %w", file, err)
		}
		r.logger.Debug("Wrote user", zap.String("path", file))
		res.Written++
	}
	return res, nil
}

// RenderCasts writes <out>/<username>/<yyyymmdd>-<hhmmss>-<hash[2:10]>.md for each
// archived cast. Existing files are left untouched.
func (r *Renderer) RenderCasts(ctx context.Context) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "render.casts")
	defer span.End()

	var res Result
	err := r.casts.Each(ctx, batchSize, func(rows []*models.CastRecord) error {
		fids := make([]uint64, 0, 2*len(rows))
		for _, row := range rows {
			fids = append(fids, row.FID)
			if row.ParentFID != nil {
				fids = append(fids, *row.ParentFID)
			}
		}
		known, err := r.users.GetByFIDs(ctx, fids)
		if err != nil {
			return fmt.Errorf("failed to load authors: %w", err)
		}

		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			written, err := r.renderCast(ctx, row, known)
			if err != nil {
				return err
			}
			if written {
				res.Written++
			} else {
				res.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	r.logger.Info("Rendered casts", zap.Int("written", res.Written), zap.Int("skipped", res.Skipped))
	return res, nil
}

func (r *Renderer) renderCast(ctx context.Context, row *models.CastRecord, known map[uint64]*models.UserRecord) (bool, error) {
	cast, err := row.Cast()
	if err != nil {
		return false, err
	}
	author := lookup(known, row.FID)
	ts, err := cast.Time()
	if err != nil {
		return false, err
	}

	dir := path.Join(r.outDir, username(author))
	file := path.Join(dir, CastFile(ts, row.Hash))
	if exists, err := afero.Exists(r.fs, file); err != nil {
		return false, err
	} else if exists {
		return false, nil
	}
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	replies, err := r.casts.CountReplies(ctx, row.FID, row.Hash)
	if err != nil {
		return false, fmt.Errorf("failed to count replies to %s: %w", row.Hash, err)
	}

	view := castView{
		Hash:      strings.TrimPrefix(row.Hash, "0x"),
		Timestamp: cast.Timestamp,
		FID:       row.FID,
		Username:  username(author),
		Text:      cast.Text,
		Embeds:    embeds(cast.Embeds),
		Replies:   replyFooter(replies),
		Channel:   channelLine(cast.Channel),
	}
	if row.IsReply() {
		view.Reply = true
		view.ParentHash = strings.TrimPrefix(*row.ParentHash, "0x")
		view.ThreadHash = strings.TrimPrefix(cast.ThreadHashValue(), "0x")
		view.ParentUsername = "unknown"
		view.ParentPath = "<deleted>"
		if row.ParentFID != nil {
			view.ParentFID = *row.ParentFID
			parentUser := lookup(known, *row.ParentFID)
			view.ParentUsername = username(parentUser)
			if p, err := r.parentPath(ctx, parentUser, *row.ParentHash); err != nil {
				return false, err
			} else if p != "" {
				view.ParentPath = p
			}
		}
	}

	var buf bytes.Buffer
	if err := castTemplate.Execute(&buf, view); err != nil {
		return false, fmt.Errorf("failed to render cast %s: %w", row.Hash, err)
	}
	if err := afero.WriteFile(r.fs, file, buf.Bytes(), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", file, err)
	}
	r.logger.Debug("Wrote cast", zap.String("path", file))
	return true, nil
}

// parentPath links to the parent's file, or returns "" when the parent is not archived
func (r *Renderer) parentPath(ctx context.Context, parentUser *models.UserRecord, hash string) (string, error) {
	parent, err := r.casts.GetByHash(ctx, hash)
	if err != nil {
		return "", fmt.Errorf("failed to load parent %s: %w", hash, err)
	}
	if parent == nil || parent.FID != parentUser.FID {
		return "", nil
	}
	cast, err := parent.Cast()
	if err != nil {
		return "", err
	}
	ts, err := cast.Time()
	if err != nil {
		return "", nil
	}
	return path.Join("..", username(parentUser), CastFile(ts, hash)), nil
}

// lookup returns the archived user or, for authors never archived, a placeholder
func lookup(known map[uint64]*models.UserRecord, fid uint64) *models.UserRecord {
	if u, ok := known[fid]; ok {
		return u
	}
	return models.PlaceholderUser(fid)
}

func username(u *models.UserRecord) string {
	if u.Username == "" {
		return models.PlaceholderUser(u.FID).Username
	}
	return u.Username
}

// UserFile is the file name of a user's page
func UserFile(u *models.UserRecord) string {
	return username(u) + ".md"
}

// CastFile is the file name of a cast: UTC yyyymmdd-hhmmss and eight hash digits
func CastFile(ts time.Time, hash string) string {
	short := strings.TrimPrefix(hash, "0x")
	if len(short) > 8 {
		short = short[:8]
	}
	return ts.UTC().Format("20060102-150405") + "-" + short + ".md"
}

func embeds(list []models.Embed) []string {
	var out []string
	for _, e := range list {
		switch {
		case e.CastID != nil:
			out = append(out, fmt.Sprintf("> quoted cast %s by fid %d", strings.TrimPrefix(e.CastID.Hash, "0x"), e.CastID.FID))
		case e.URL == "":
		case e.IsImage():
			out = append(out, fmt.Sprintf(`<img src="%s" alt="embedded image" />`, html.EscapeString(e.URL)))
		default:
			out = append(out, fmt.Sprintf("[%s](%s)", e.URL, e.URL))
		}
	}
	return out
}

func replyFooter(n int64) string {
	switch n {
	case 0:
		return ""
	case 1:
		return "1 Reply"
	default:
		return fmt.Sprintf("%d Replies", n)
	}
}

func channelLine(ch *models.Channel) string {
	if ch == nil || ch.Name == "" {
		return "{no channel}"
	}
	if ch.ImageURL == "" {
		return ch.Name
	}
	return fmt.Sprintf(`%s <img src="%s" height="20" width="20" alt="%s" />`, ch.Name, html.EscapeString(ch.ImageURL), ch.Name)
}
