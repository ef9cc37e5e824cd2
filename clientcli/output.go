package clientcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Formatter formats results for output.
type Formatter interface {
	FormatUpload(w io.Writer, results []UploadResult) error
	FormatDownload(w io.Writer, result *DownloadResult) error
	FormatDelete(w io.Writer, results []DeleteResult) error
	FormatList(w io.Writer, nodes []Node) error
	FormatNode(w io.Writer, verb string, node Node) error
	FormatTask(w io.Writer, task Task) error
	FormatLinks(w io.Writer, links []Link) error
	FormatLinkInfo(w io.Writer, info LinkInfo) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

const timeLayout = "2006-01-02 15:04:05"

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatUpload formats upload results as human-readable text.
func (f *HumanFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.LocalPath, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Uploaded: %s -> %s (%s, %d part(s))\n", r.LocalPath, r.RemotePath, formatSize(r.Size), r.Parts)
		}
	}
	return nil
}

// FormatDownload formats download result as human-readable text.
func (f *HumanFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	if f.Quiet {
		return nil
	}
	if result.LocalPath == "-" {
		_, _ = fmt.Fprintf(w, "Downloaded: %s (%s)\n", result.RemotePath, formatSize(result.Size))
	} else {
		_, _ = fmt.Fprintf(w, "Downloaded: %s -> %s (%s)\n", result.RemotePath, result.LocalPath, formatSize(result.Size))
	}
	return nil
}

// FormatDelete formats delete results as human-readable text.
func (f *HumanFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.Path, r.Err)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Deleted: %s (task %d)\n", r.Path, r.TaskID)
		}
	}
	return nil
}

// FormatList formats folder contents as human-readable text.
func (f *HumanFormatter) FormatList(w io.Writer, nodes []Node) error {
	if len(nodes) == 0 {
		_, _ = fmt.Fprintln(w, "Folder is empty")
		return nil
	}

	maxNameLen := 4 // "NAME"
	for i := range nodes {
		if n := len(displayName(&nodes[i])); n > maxNameLen {
			maxNameLen = n
		}
	}
	if maxNameLen > 60 {
		maxNameLen = 60
	}

	_, _ = fmt.Fprintf(w, "%-*s  %-6s  %s\n", maxNameLen, "NAME", "TYPE", "UPDATED")
	_, _ = fmt.Fprintf(w, "%s  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", 6), strings.Repeat("-", 19))

	folders := 0
	for i := range nodes {
		n := &nodes[i]
		name := displayName(n)
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}
		kind := "file"
		if n.IsFolder {
			kind = "folder"
			folders++
		}
		_, _ = fmt.Fprintf(w, "%-*s  %-6s  %s\n", maxNameLen, name, kind, n.UpdatedAt.Local().Format(timeLayout))
	}

	_, _ = fmt.Fprintf(w, "\n%d folder(s), %d file(s)\n", folders, len(nodes)-folders)
	return nil
}

func displayName(n *Node) string {
	name := n.Filename
	if n.IsFolder {
		name += "/"
	}
	if n.Trashed {
		name += " (trashed)"
	}
	return name
}

// FormatNode reports a created, copied or moved node.
func (f *HumanFormatter) FormatNode(w io.Writer, verb string, node Node) error {
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "%s: %s\n", verb, node.VirtualPath)
	}
	return nil
}

// FormatTask formats a background task as human-readable text.
func (f *HumanFormatter) FormatTask(w io.Writer, task Task) error {
	_, _ = fmt.Fprintf(w, "Task %d: %s\n", task.ID, task.State)
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "  Label:     %s\n", task.Label)
		_, _ = fmt.Fprintf(w, "  Submitted: %s\n", task.SubmittedAt.Local().Format(timeLayout))
		if task.FinishedAt != nil {
			_, _ = fmt.Fprintf(w, "  Finished:  %s\n", task.FinishedAt.Local().Format(timeLayout))
		}
	}
	if task.Error != "" {
		_, _ = fmt.Fprintf(w, "  Error:     %s\n", task.Error)
	}
	return nil
}

// FormatLinks formats share links as human-readable text.
func (f *HumanFormatter) FormatLinks(w io.Writer, links []Link) error {
	if len(links) == 0 {
		_, _ = fmt.Fprintln(w, "No links")
		return nil
	}

	_, _ = fmt.Fprintf(w, "%-36s  %8s  %9s  %s\n", "ID", "FILE", "DOWNLOADS", "EXPIRES")
	_, _ = fmt.Fprintf(w, "%s  %s  %s  %s\n", strings.Repeat("-", 36), strings.Repeat("-", 8), strings.Repeat("-", 9), strings.Repeat("-", 19))

	for i := range links {
		l := &links[i]
		_, _ = fmt.Fprintf(w, "%-36s  %8d  %9s  %s\n", l.ID, l.FileID, formatDownloads(l.DownloadCount, l.DownloadLimit), formatExpiry(l.ExpiresAt))
	}
	return nil
}

// FormatLinkInfo formats the public description of a link.
func (f *HumanFormatter) FormatLinkInfo(w io.Writer, info LinkInfo) error {
	_, _ = fmt.Fprintf(w, "File:      %s\n", info.Filename)
	_, _ = fmt.Fprintf(w, "Password:  %t\n", info.PasswordProtected)
	_, _ = fmt.Fprintf(w, "Downloads: %s\n", formatDownloads(info.DownloadCount, info.DownloadLimit))
	_, _ = fmt.Fprintf(w, "Expires:   %s\n", formatExpiry(info.ExpiresAt))
	return nil
}

func formatDownloads(count int, limit *int) string {
	if limit == nil {
		return fmt.Sprintf("%d", count)
	}
	return fmt.Sprintf("%d/%d", count, *limit)
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(timeLayout)
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// FormatProfileList formats a list of profiles as human-readable text.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	maxNameLen := 4     // "NAME"
	maxEndpointLen := 8 // "ENDPOINT"
	for i := range profiles {
		if len(profiles[i].Name) > maxNameLen {
			maxNameLen = len(profiles[i].Name)
		}
		if len(profiles[i].Endpoint) > maxEndpointLen {
			maxEndpointLen = len(profiles[i].Endpoint)
		}
	}
	if maxNameLen > 20 {
		maxNameLen = 20
	}
	if maxEndpointLen > 50 {
		maxEndpointLen = 50
	}

	_, _ = fmt.Fprintf(w, "  %-*s  %-*s  %-16s  %s\n", maxNameLen, "NAME", maxEndpointLen, "ENDPOINT", "USER", "TOKEN")
	_, _ = fmt.Fprintf(w, "  %s  %s  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", maxEndpointLen), strings.Repeat("-", 16), strings.Repeat("-", 20))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}

		name := p.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}

		endpoint := p.Endpoint
		if len(endpoint) > maxEndpointLen {
			endpoint = endpoint[:maxEndpointLen-3] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s %-*s  %-*s  %-16s  %s\n", marker, maxNameLen, name, maxEndpointLen, endpoint, p.Username, maskSecret(p.Token, showSecrets))
	}

	return nil
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	_, _ = fmt.Fprintf(w, "Name:     %s", profile.Name)
	if isDefault {
		_, _ = fmt.Fprintf(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Endpoint: %s\n", profile.Endpoint)
	_, _ = fmt.Fprintf(w, "Username: %s\n", profile.Username)
	_, _ = fmt.Fprintf(w, "Token:    %s\n", maskSecret(profile.Token, showSecrets))
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatUpload formats upload results as JSON.
func (f *JSONFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	type jsonResult struct {
		LocalPath  string `json:"local_path"`
		RemotePath string `json:"remote_path"`
		Size       int64  `json:"size_bytes,omitempty"`
		Parts      int    `json:"parts,omitempty"`
		Error      string `json:"error,omitempty"`
	}

	output := make([]jsonResult, len(results))
	for i := range results {
		r := &results[i]
		jr := jsonResult{
			LocalPath:  r.LocalPath,
			RemotePath: r.RemotePath,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		} else {
			jr.Size = r.Size
			jr.Parts = r.Parts
		}
		output[i] = jr
	}

	return writeJSON(w, output)
}

// FormatDownload formats download result as JSON.
func (f *JSONFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	return writeJSON(w, result)
}

// FormatDelete formats delete results as JSON.
func (f *JSONFormatter) FormatDelete(w io.Writer, results []DeleteResult) error {
	type jsonResult struct {
		Path    string `json:"path"`
		Deleted bool   `json:"deleted"`
		TaskID  *int   `json:"task_id,omitempty"`
		Error   string `json:"error,omitempty"`
	}

	output := struct {
		Results []jsonResult `json:"results"`
	}{
		Results: make([]jsonResult, len(results)),
	}

	for i, r := range results {
		jr := jsonResult{
			Path:    r.Path,
			Deleted: r.Deleted,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		} else {
			id := r.TaskID
			jr.TaskID = &id
		}
		output.Results[i] = jr
	}

	return writeJSON(w, output)
}

// FormatList formats folder contents as JSON.
func (f *JSONFormatter) FormatList(w io.Writer, nodes []Node) error {
	return writeJSON(w, struct {
		Files []Node `json:"files"`
	}{Files: nodes})
}

// FormatNode formats a node as JSON.
func (f *JSONFormatter) FormatNode(w io.Writer, _ string, node Node) error {
	return writeJSON(w, node)
}

// FormatTask formats a task as JSON.
func (f *JSONFormatter) FormatTask(w io.Writer, task Task) error {
	return writeJSON(w, task)
}

// FormatLinks formats share links as JSON.
func (f *JSONFormatter) FormatLinks(w io.Writer, links []Link) error {
	return writeJSON(w, struct {
		Links []Link `json:"links"`
	}{Links: links})
}

// FormatLinkInfo formats link info as JSON.
func (f *JSONFormatter) FormatLinkInfo(w io.Writer, info LinkInfo) error {
	return writeJSON(w, info)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	}
	return writeJSON(w, output)
}

// FormatProfileList formats a list of profiles as JSON.
func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	type jsonProfile struct {
		Name     string `json:"name"`
		Endpoint string `json:"endpoint"`
		Username string `json:"username,omitempty"`
		Token    string `json:"token,omitempty"`
		Default  bool   `json:"default,omitempty"`
	}

	output := struct {
		Profiles []jsonProfile `json:"profiles"`
	}{
		Profiles: make([]jsonProfile, len(profiles)),
	}

	for i := range profiles {
		p := &profiles[i]
		output.Profiles[i] = jsonProfile{
			Name:     p.Name,
			Endpoint: p.Endpoint,
			Username: p.Username,
			Token:    maskSecret(p.Token, showSecrets),
			Default:  p.Name == defaultName,
		}
	}

	return writeJSON(w, output)
}

// FormatProfileShow formats a single profile as JSON.
func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	output := struct {
		Name     string `json:"name"`
		Endpoint string `json:"endpoint"`
		Username string `json:"username"`
		Token    string `json:"token"`
		Default  bool   `json:"default"`
	}{
		Name:     profile.Name,
		Endpoint: profile.Endpoint,
		Username: profile.Username,
		Token:    maskSecret(profile.Token, showSecrets),
		Default:  isDefault,
	}

	return writeJSON(w, output)
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// maskSecret shows only the first and last 4 characters of a secret.
// Short secrets are fully masked.
func maskSecret(secret string, showSecrets bool) string {
	if showSecrets {
		return secret
	}
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
