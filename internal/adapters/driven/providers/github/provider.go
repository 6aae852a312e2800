// Package github pushes accepted solutions straight to a GitHub repository
// through the contents API.
package github

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.ChannelProvider = (*Provider)(nil)

// Provider writes one solution file per record.
type Provider struct {
	client *Client
	target target
}

// NewProvider builds a provider from a github provider config.
func NewProvider(cfg *domain.ProviderConfig, clientCfg *Config) (*Provider, error) {
	if cfg == nil {
		return nil, domain.ErrConfigurationMissing
	}
	if err := cfg.Usable(); err != nil {
		return nil, err
	}
	t, err := parseTarget(cfg)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if clientCfg != nil {
		copied := *clientCfg
		c = &copied
	}
	if api := strings.TrimSpace(cfg.Setting(SettingAPIURL)); api != "" {
		c.APIBaseURL = api
	}
	return &Provider{client: NewClient(cfg.Setting(SettingToken), c), target: t}, nil
}

// Channel returns the github channel.
func (p *Provider) Channel() domain.Channel {
	return domain.ChannelGitHub
}

// SyncOne creates or updates the record's solution file and returns its path.
func (p *Provider) SyncOne(ctx context.Context, record *domain.Record) (*domain.ChannelResult, error) {
	if strings.TrimSpace(record.Code) == "" {
		return nil, fmt.Errorf("%w: record %d has no code", domain.ErrValidation, record.ID)
	}

	filePath := SolutionPath(p.target.pathPrefix, record)
	existing, err := p.client.GetFileContent(ctx, p.target.owner, p.target.repo, filePath, p.target.branch)
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", filePath, err)
	}

	verb, sha := "Add", ""
	if existing != nil {
		verb, sha = "Update", existing.SHA
	}
	message := fmt.Sprintf("%s solution: %s (%s)", verb, problemName(record), record.Language)

	if _, err := p.client.PutFile(ctx, p.target.owner, p.target.repo, filePath, p.target.branch,
		message, RenderSolution(record), sha); err != nil {
		return nil, fmt.Errorf("write %s: %w", filePath, err)
	}
	return &domain.ChannelResult{GitFilePath: filePath}, nil
}

// SolutionPath is prefix/<problem id>-<slug>/<submission id><ext>
func SolutionPath(prefix string, record *domain.Record) string {
	slug := slugify(record.ProblemSlug)
	if slug == "" {
		slug = slugify(record.ProblemTitle)
	}
	if slug == "" {
		slug = "problem"
	}
	dir := fmt.Sprintf("%04d-%s", record.ProblemID, slug)
	file := slugify(record.SubmissionID) + languageExtension(record.Language)
	return path.Join(prefix, dir, file)
}

// RenderSolution prefixes the code with a comment header describing the submission
func RenderSolution(record *domain.Record) []byte {
	c := commentPrefix(record.Language)
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", c, problemName(record))
	if record.OJType == "leetcode" && record.ProblemSlug != "" {
		fmt.Fprintf(&b, "%s https://leetcode.com/problems/%s/\n", c, record.ProblemSlug)
	}
	if record.ExecutionResult != "" {
		fmt.Fprintf(&b, "%s Result: %s\n", c, record.ExecutionResult)
	}
	if record.RuntimeMs > 0 || record.MemoryKB > 0 {
		fmt.Fprintf(&b, "%s Runtime: %d ms, Memory: %d KB\n", c, record.RuntimeMs, record.MemoryKB)
	}
	if !record.SubmitTime.IsZero() {
		fmt.Fprintf(&b, "%s Submitted: %s\n", c, record.SubmitTime.UTC().Format(time.RFC3339))
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimRight(record.Code, "\n"))
	b.WriteString("\n")
	return []byte(b.String())
}

func problemName(record *domain.Record) string {
	if record.ProblemTitle == "" {
		return fmt.Sprintf("%d", record.ProblemID)
	}
	return fmt.Sprintf("%d. %s", record.ProblemID, record.ProblemTitle)
}

// slugify keeps letters, digits and dashes, lowercased
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

var extensions = map[string]string{
	"python":     ".py",
	"python3":    ".py",
	"go":         ".go",
	"golang":     ".go",
	"java":       ".java",
	"c":          ".c",
	"cpp":        ".cpp",
	"c++":        ".cpp",
	"csharp":     ".cs",
	"c#":         ".cs",
	"javascript": ".js",
	"typescript": ".ts",
	"rust":       ".rs",
	"kotlin":     ".kt",
	"swift":      ".swift",
	"ruby":       ".rb",
	"scala":      ".scala",
	"php":        ".php",
	"mysql":      ".sql",
	"sql":        ".sql",
	"bash":       ".sh",
}

func languageExtension(language string) string {
	if ext, ok := extensions[strings.ToLower(strings.TrimSpace(language))]; ok {
		return ext
	}
	return ".txt"
}

func commentPrefix(language string) string {
	switch languageExtension(language) {
	case ".py", ".rb", ".sh":
		return "#"
	case ".sql":
		return "--"
	}
	return "//"
}
