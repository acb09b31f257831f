package render

import "text/template"

var userTemplate = template.Must(template.New("user").Parse(`username: {{.Username}}
fid: {{.FID}}
display name: {{or .DisplayName "unknown"}}
PFP: {{if .Avatar}}[{{.Avatar}}]({{.Avatar}}){{else}}unknown{{end}}
bio: {{or .Bio "unknown"}}

{{if .Avatar}}<img src="{{.Avatar}}" height="100" width="100" alt="{{or .DisplayName "unknown"}}" />{{else}}no avatar{{end}}
---
{{range .Hashes}}{{.}}
{{end}}`))

type userView struct {
	FID         uint64
	Username    string
	DisplayName string
	Avatar      string
	Bio         string
	Hashes      []string
}

var castTemplate = template.Must(template.New("cast").Parse(`---
hash: {{.Hash}}
timestamp: {{.Timestamp}}
fid: {{.FID}}
{{- if .Reply}}
parent_fid: {{.ParentFID}}
parent_hash: {{.ParentHash}}
root_parent_hash: {{.ThreadHash}}
{{- end}}
---
[{{.Username}}](../_users_/{{.Username}}.md)
{{- if .Reply}}
replying to: [{{.ParentUsername}}]({{.ParentPath}})
{{- end}}
--
{{.Text}}
{{- range .Embeds}}
{{.}}
{{- end}}
{{- if .Replies}}
--
{{.Replies}}
{{- end}}
--
{{.Channel}}
`))

type castView struct {
	Hash           string
	Timestamp      string
	FID            uint64
	Username       string
	Reply          bool
	ParentFID      uint64
	ParentHash     string
	ThreadHash     string
	ParentUsername string
	ParentPath     string
	Text           string
	Embeds         []string
	Replies        string
	Channel        string
}
