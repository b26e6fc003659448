package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// TemplateContext — данные, доступные в шаблонах аргументов.
//
// Используется в Go templates:
//   - {{ .Step }}, {{ .Index }}, {{ .Job }}, {{ .Threads }}
//   - {{ .WorkDir }}, {{ .OutDir }}
//   - {{ index .Inputs "syn/0" "netlist.v" }} — артефакт входа
//   - {{ .Params.design }} — параметр узла из flow
type TemplateContext struct {
	Job     string
	Tool    string
	Step    string
	Index   string
	Threads int
	WorkDir string
	OutDir  string
	Params  map[string]any

	// Inputs — артефакты входов: "step/index" → имя → путь.
	Inputs map[string]map[string]string
}

// NewTemplateContext собирает контекст шаблонов для узла.
func NewTemplateContext(cfg *NodeConfig) *TemplateContext {
	params := cfg.Params
	if params == nil {
		params = make(map[string]any)
	}
	inputs := make(map[string]map[string]string, len(cfg.Inputs))
	for _, in := range cfg.Inputs {
		inputs[in.String()] = cfg.InputOutputs(in)
	}
	return &TemplateContext{
		Job:     cfg.Job,
		Tool:    cfg.Tool,
		Step:    cfg.Node.Step,
		Index:   cfg.Node.Index,
		Threads: cfg.Threads(),
		WorkDir: cfg.WorkDir,
		OutDir:  cfg.OutputPath(""),
		Params:  params,
		Inputs:  inputs,
	}
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	"join":    func(sep string, items []string) string { return strings.Join(items, sep) },
	"lower":   strings.ToLower,
	"upper":   strings.ToUpper,
	"trim":    strings.TrimSpace,
	"replace": strings.ReplaceAll,
}

// Render рендерит строковый шаблон с контекстом.
func Render(tmpl string, ctx *TemplateContext) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderArgs рендерит список аргументов.
func RenderArgs(args []string, ctx *TemplateContext) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		rendered, err := Render(arg, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, rendered)
	}
	return out, nil
}
