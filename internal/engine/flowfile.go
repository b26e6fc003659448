package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/pdflow/internal/domain"
)

// flowValidate — экземпляр валидатора для flow-файлов.
var flowValidate *validator.Validate

func init() {
	flowValidate = validator.New()
	_ = flowValidate.RegisterValidation("nodeid", validateNodeID)
}

// validateNodeID проверяет ссылку на узел вида "step/index" или "step".
func validateNodeID(fl validator.FieldLevel) bool {
	_, err := domain.ParseNodeID(fl.Field().String())
	return err == nil
}

// FlowFile — описание flow в файле.
//
// Пример:
//
//	name: asicflow
//	nodes:
//	  - step: syn
//	    index: "0"
//	    tool: yosys
//	  - step: place
//	    index: "0"
//	    tool: openroad
//	    inputs: [syn/0]
//	  - step: placemin
//	    index: "0"
//	    tool: minimum
//	    inputs: [place/0, place/1]
//	    weights: {cellarea: 1.0, errors: 10}
type FlowFile struct {
	Name  string      `yaml:"name" json:"name" validate:"required"`
	Nodes []NodeEntry `yaml:"nodes" json:"nodes" validate:"required,min=1,dive"`
}

// NodeEntry — узел в flow-файле.
type NodeEntry struct {
	Step    string             `yaml:"step" json:"step" validate:"required,excludes=/"`
	Index   string             `yaml:"index" json:"index" validate:"required,excludes=/"`
	Tool    string             `yaml:"tool" json:"tool" validate:"required"`
	Inputs  []string           `yaml:"inputs,omitempty" json:"inputs,omitempty" validate:"dive,nodeid"`
	Weights map[string]float64 `yaml:"weights,omitempty" json:"weights,omitempty" validate:"dive,keys,required,endkeys"`
	Threads int                `yaml:"threads,omitempty" json:"threads,omitempty" validate:"gte=0"`
	Options map[string]any     `yaml:"options,omitempty" json:"options,omitempty"`
}

// ParseFlow разбирает flow из YAML или JSON.
func ParseFlow(data []byte) (*domain.FlowSpec, error) {
	var file FlowFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFlowDecode, err)
	}

	if err := flowValidate.Struct(&file); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			fe := vErrs[0]
			return nil, NewConfigError("", fe.Namespace(),
				fmt.Sprintf("field %s failed %q check", fe.Namespace(), fe.Tag()), ErrFlowDecode)
		}
		return nil, fmt.Errorf("%w: %v", ErrFlowDecode, err)
	}

	return file.ToSpec()
}

// LoadFlowFile загружает flow из файла (.yaml, .yml или .json).
func LoadFlowFile(path string) (*domain.FlowSpec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("%w: %s", ErrFlowFormat, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow file: %w", err)
	}

	spec, err := ParseFlow(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// ToSpec преобразует файл в FlowSpec.
func (f *FlowFile) ToSpec() (*domain.FlowSpec, error) {
	spec := &domain.FlowSpec{
		Name:  f.Name,
		Nodes: make([]domain.NodeDef, 0, len(f.Nodes)),
	}

	for _, entry := range f.Nodes {
		inputs := make([]domain.NodeID, 0, len(entry.Inputs))
		for _, raw := range entry.Inputs {
			id, err := domain.ParseNodeID(raw)
			if err != nil {
				return nil, NewConfigError(entry.Step+"/"+entry.Index, "inputs", err.Error(), ErrFlowDecode)
			}
			inputs = append(inputs, id)
		}

		spec.Nodes = append(spec.Nodes, domain.NodeDef{
			ID:      domain.NodeID{Step: entry.Step, Index: entry.Index},
			Kind:    domain.KindOf(entry.Tool),
			Tool:    entry.Tool,
			Inputs:  inputs,
			Weights: entry.Weights,
			Threads: entry.Threads,
			Options: entry.Options,
		})
	}

	return spec, nil
}
