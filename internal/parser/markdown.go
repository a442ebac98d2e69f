package parser

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/harrison/coordinator/internal/models"
)

// MarkdownParser reads human-authored plans:
//
//	---
//	task_id: task-42
//	coordination_type: parallel
//	quality_gates:
//	  - {name: min-confidence, agent_type: valuation, rule: "valuation.confidence >= 0.6"}
//	---
//	# Plan: Listing intake
//
//	## Agent: valuation
//	- order: 2
//	- depends_on: listing
//	- inputs: address=listing.address, details=listing.details
//	- conditions: listing.kind == condo; listing.confidence > 0.5
//
// Frontmatter carries plan-level fields, the first H1 names the plan and
// every "## Agent: <type>" section declares one agent in order.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

var agentHeadingRegex = regexp.MustCompile(`^Agent:\s*(\S+)\s*$`)

// planFrontmatter holds the plan-level fields accepted in frontmatter.
type planFrontmatter struct {
	ID               string               `yaml:"id"`
	Name             string               `yaml:"name"`
	TaskID           string               `yaml:"task_id"`
	WorkflowID       string               `yaml:"workflow_id"`
	CoordinationType string               `yaml:"coordination_type"`
	QualityGates     []models.QualityGate `yaml:"quality_gates"`
}

// NewMarkdownParser creates a MarkdownParser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		markdown: goldmark.New(),
	}
}

// Parse implements Parser.
func (p *MarkdownParser) Parse(r io.Reader) (*models.CoordinationPlan, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	plan := &models.CoordinationPlan{}
	content, frontmatter := extractFrontmatter(content)
	if frontmatter != nil {
		if err := parsePlanFrontmatter(frontmatter, plan); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
	}

	doc := p.markdown.Parser().Parse(text.NewReader(content))
	if err := extractAgents(doc, content, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// extractAgents walks the top-level blocks: H1 names the plan, each agent
// heading opens a section and bullet lists inside it set that agent's fields.
func extractAgents(doc ast.Node, source []byte, plan *models.CoordinationPlan) error {
	var current *models.AgentTaskConfig
	flush := func() {
		if current != nil {
			plan.Agents = append(plan.Agents, *current)
			current = nil
		}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			headingText := strings.TrimSpace(extractText(node, source))
			switch node.Level {
			case 1:
				if plan.Name == "" {
					plan.Name = strings.TrimSpace(strings.TrimPrefix(headingText, "Plan:"))
				}
			case 2:
				flush()
				if m := agentHeadingRegex.FindStringSubmatch(headingText); m != nil {
					current = &models.AgentTaskConfig{AgentType: m[1]}
				}
			}
		case *ast.List:
			if current == nil {
				continue
			}
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				line := strings.TrimSpace(extractText(item, source))
				if err := applyAgentField(current, line); err != nil {
					return fmt.Errorf("agent %s: %w", current.AgentType, err)
				}
			}
		}
	}
	flush()

	// Agents without an explicit order run in declared order.
	for i := range plan.Agents {
		if plan.Agents[i].ExecutionOrder == 0 {
			plan.Agents[i].ExecutionOrder = i + 1
		}
	}
	return nil
}

// applyAgentField applies one "key: value" bullet. Unknown keys are ignored
// so sections can carry free-form notes.
func applyAgentField(cfg *models.AgentTaskConfig, line string) error {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return nil
	}
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	switch key {
	case "order", "execution_order":
		order, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid order %q", value)
		}
		cfg.ExecutionOrder = order
	case "depends_on", "dependencies":
		cfg.Dependencies = append(cfg.Dependencies, splitList(value, ",")...)
	case "inputs", "input_mapping":
		if cfg.InputMapping == nil {
			cfg.InputMapping = make(map[string]string)
		}
		for _, pair := range splitList(value, ",") {
			target, ref, ok := strings.Cut(pair, "=")
			if !ok || strings.TrimSpace(target) == "" || strings.TrimSpace(ref) == "" {
				return fmt.Errorf("invalid input mapping %q (want target=agent.field)", pair)
			}
			cfg.InputMapping[strings.TrimSpace(target)] = strings.TrimSpace(ref)
		}
	case "conditions", "condition":
		cfg.Conditions = append(cfg.Conditions, splitList(value, ";")...)
	case "task_type":
		cfg.TaskType = value
	case "priority":
		priority, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid priority %q", value)
		}
		cfg.Priority = priority
	}
	return nil
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" && part != "none" {
			out = append(out, part)
		}
	}
	return out
}

// extractText concatenates the text under n, joining soft line breaks with a space.
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// extractFrontmatter extracts YAML frontmatter from markdown content
// Returns the content without frontmatter and the frontmatter bytes
func extractFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))

	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}

	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			frontmatter := bytes.Join(lines[1:i], []byte("\n"))
			body := bytes.Join(lines[i+1:], []byte("\n"))
			return body, frontmatter
		}
	}

	// No closing delimiter found
	return content, nil
}

func parsePlanFrontmatter(frontmatter []byte, plan *models.CoordinationPlan) error {
	var fm planFrontmatter
	if err := yaml.Unmarshal(frontmatter, &fm); err != nil {
		return err
	}
	plan.ID = fm.ID
	plan.Name = fm.Name
	plan.TaskID = fm.TaskID
	plan.WorkflowID = fm.WorkflowID
	plan.CoordinationType = models.CoordinationType(fm.CoordinationType)
	plan.QualityGates = fm.QualityGates
	return nil
}
