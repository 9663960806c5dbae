package cli

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/dwarfdump/pkg/debuginfo"
)

const typeIDPattern = `^[0-9]+_[0-9]+$`

var (
	typeIDType      = reflect.TypeFor[debuginfo.TypeID]()
	typeNodesType   = reflect.TypeFor[debuginfo.TypeNodes]()
	operationsType  = reflect.TypeFor[debuginfo.Operations]()
	unitVariantType = reflect.TypeFor[debuginfo.UnitVariant]()
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := json.MarshalIndent(reportSchema(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode schema: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}

// reportSchema describes the report as written by dwarfdump. Type nodes and
// location operations are tagged unions keyed by their "type" member.
func reportSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true}
	r.Mapper = func(t reflect.Type) *jsonschema.Schema {
		switch t {
		case typeIDType:
			return &jsonschema.Schema{Type: "string", Pattern: typeIDPattern}
		case typeNodesType:
			return &jsonschema.Schema{
				Type:                 "object",
				PropertyNames:        &jsonschema.Schema{Pattern: typeIDPattern},
				AdditionalProperties: &jsonschema.Schema{OneOf: typeVariants(r)},
			}
		case operationsType:
			return &jsonschema.Schema{
				Type:  "array",
				Items: &jsonschema.Schema{OneOf: operationVariants(r)},
			}
		case unitVariantType:
			return tagged("Unit", emptyObject())
		}
		return nil
	}

	s := r.Reflect(&debuginfo.Report{})
	s.Title = "dwarfdump report"
	return s
}

func typeVariants(r *jsonschema.Reflector) []*jsonschema.Schema {
	var out []*jsonschema.Schema
	for _, p := range []debuginfo.Primitive{
		debuginfo.I8, debuginfo.I16, debuginfo.I32, debuginfo.I64, debuginfo.I128,
		debuginfo.U8, debuginfo.U16, debuginfo.U32, debuginfo.U64, debuginfo.U128,
		debuginfo.F32, debuginfo.F64, debuginfo.Bool,
	} {
		out = append(out, tagged(p.Kind(), emptyObject()))
	}
	for _, t := range []debuginfo.Type{
		debuginfo.Reference{}, debuginfo.Array{}, debuginfo.Struct{}, debuginfo.Enum{}, debuginfo.VariantPart{},
	} {
		out = append(out, tagged(t.Kind(), body(r, t)))
	}
	return out
}

func operationVariants(r *jsonschema.Reflector) []*jsonschema.Schema {
	var out []*jsonschema.Schema
	for _, op := range []debuginfo.Operation{
		debuginfo.Register{}, debuginfo.FrameOffset{}, debuginfo.RegisterOffset{}, debuginfo.Piece{},
		debuginfo.SignedConstant{}, debuginfo.UnsignedConstant{}, debuginfo.StackValue{},
		debuginfo.Minus{}, debuginfo.Plus{}, debuginfo.And{}, debuginfo.Or{}, debuginfo.Unsupported{},
	} {
		out = append(out, tagged(op.Kind(), body(r, op)))
	}
	return out
}

func body(r *jsonschema.Reflector, v any) *jsonschema.Schema {
	s := r.ReflectFromType(reflect.TypeOf(v))
	s.Version = ""
	s.ID = ""
	return s
}

func emptyObject() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           jsonschema.NewProperties(),
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

// tagged prepends the "type" member holding kind to an object schema.
func tagged(kind string, s *jsonschema.Schema) *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("type", &jsonschema.Schema{Type: "string", Const: kind})
	if s.Properties != nil {
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			props.Set(pair.Key, pair.Value)
		}
	}
	s.Properties = props
	s.Required = append([]string{"type"}, s.Required...)
	return s
}
