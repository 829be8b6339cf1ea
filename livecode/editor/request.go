package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ZanzyTHEbar/livecode/livecode/ast"
	"github.com/ZanzyTHEbar/livecode/livecode/common"
	"github.com/ZanzyTHEbar/livecode/livecode/snapshot"
)

// requestValidate checks edit requests; the name rules are registered as
// custom validations so tag errors and naming errors read the same way.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("nsname", func(fl validator.FieldLevel) bool {
		return common.ValidateNamespaceName(fl.Field().String()) == nil
	})
	_ = requestValidate.RegisterValidation("defname", func(fl validator.FieldLevel) bool {
		return common.ValidateDefinitionName(fl.Field().String()) == nil
	})
}

// Request is a structural edit of one definition, as sent by an external
// tool. Trees are AST-as-JSON: strings are leaves, arrays are lists.
type Request struct {
	Namespace       string          `json:"namespace" validate:"required,nsname"`
	Definition      string          `json:"definition" validate:"required,defname"`
	Coordinate      []int           `json:"coordinate" validate:"dive,gte=0"`
	Mode            string          `json:"mode,omitempty" validate:"omitempty,oneof=replace after before delete prepend append"`
	NewContent      json.RawMessage `json:"new_content,omitempty"`
	ExpectedContent json.RawMessage `json:"expected_content,omitempty"`
}

// ParseRequest decodes a JSON request and validates it.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, common.Wrap(common.ErrInvalidEdit, "invalid request JSON: %v", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate checks the request fields. Name violations are ErrInvalidName;
// anything else is ErrInvalidEdit.
func (r *Request) Validate() error {
	if err := requestValidate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return common.Wrap(common.ErrInvalidEdit, "%v", err)
		}
		for _, fe := range verrs {
			switch fe.Tag() {
			case "nsname":
				return common.ValidateNamespaceName(r.Namespace)
			case "defname":
				return common.ValidateDefinitionName(r.Definition)
			}
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return common.Wrap(common.ErrInvalidEdit, "%s", strings.Join(msgs, "; "))
	}
	return nil
}

// EditMode returns the parsed mode; an empty mode means replace.
func (r *Request) EditMode() (Mode, error) {
	if r.Mode == "" {
		return Replace, nil
	}
	return ParseMode(r.Mode)
}

// Apply runs the request against code and returns the edited copy. code itself
// is left untouched.
func Apply(code ast.Node, r *Request) (ast.Node, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	mode, err := r.EditMode()
	if err != nil {
		return nil, err
	}
	content, err := ast.FromJSON(r.NewContent)
	if err != nil {
		return nil, err
	}
	expected, err := ast.FromJSON(r.ExpectedContent)
	if err != nil {
		return nil, err
	}

	tree := code
	if err := UpdateAtCoordinate(&tree, r.Coordinate, content, mode, expected); err != nil {
		return nil, fmt.Errorf("editing %s/%s: %w", r.Namespace, r.Definition, err)
	}
	return tree, nil
}

// ToChangeSet wraps one edited definition as a change-set touching only that
// definition.
func ToChangeSet(ns, def string, code ast.Node) *snapshot.ChangeSet {
	cs := snapshot.NewChangeSet()
	fc := snapshot.NewFileChange()
	fc.ChangedDefs[def] = code
	cs.Changed[ns] = fc
	return cs
}
