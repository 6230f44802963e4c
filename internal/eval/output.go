package eval

import (
	"github.com/pklrun/pkl/internal/perrors"
	"github.com/pklrun/pkl/internal/value"
)

// OutputText reads `output.text` off an evaluated module (spec §3's
// "exported Value / output.text / output.files / schema" and SPEC_FULL's
// EvaluateOutputText): a plain property read, not a render — the module
// itself computes output.text from its own members via whatever
// renderer-flavored template it amends `pkl:base`'s `output` with.
func OutputText(moduleObj *value.Object) (string, error) {
	out, err := moduleObj.GetProperty("output")
	if err != nil {
		return "", err
	}
	if out.Kind != value.KindObject {
		return "", perrors.New(perrors.TypeErr, "module `output` must be an object")
	}
	text, err := out.Obj.GetProperty("text")
	if err != nil {
		return "", err
	}
	if text.Kind != value.KindString {
		return "", perrors.New(perrors.TypeErr, "module `output.text` must be a String")
	}
	return text.Str, nil
}

// OutputFiles reads `output.files`, a Mapping (or the Dynamic object a
// `files { ... }` body produces) from relative file path to an object
// exposing its own `text` property, into a flat map (spec
// scenario 8). Closing the Evaluator before this forces the underlying
// members surfaces the evaluator's own "closed" error (§5, scenario 8),
// since GetProperty forces thunks that call back into Eval.
func OutputFiles(moduleObj *value.Object) (map[string]string, error) {
	out, err := moduleObj.GetProperty("output")
	if err != nil {
		return nil, err
	}
	if out.Kind != value.KindObject {
		return nil, perrors.New(perrors.TypeErr, "module `output` must be an object")
	}
	files, err := out.Obj.GetProperty("files")
	if err != nil {
		return nil, err
	}
	if files.Kind != value.KindObject || (files.Obj.Kind != value.KindMapping && files.Obj.Kind != value.KindDynamic) {
		return nil, perrors.New(perrors.TypeErr, "module `output.files` must be a Mapping")
	}

	result := make(map[string]string)
	for _, key := range files.Obj.MaterializedEntryKeys() {
		entry, err := files.Obj.GetEntry(key)
		if err != nil {
			return nil, err
		}
		if entry.Kind != value.KindObject {
			return nil, perrors.New(perrors.TypeErr, "each `output.files` entry must be an object")
		}
		text, err := entry.Obj.GetProperty("text")
		if err != nil {
			return nil, err
		}
		if text.Kind != value.KindString {
			return nil, perrors.New(perrors.TypeErr, "each `output.files` entry's `text` must be a String")
		}
		result[key.Str] = text.Str
	}
	return result, nil
}
