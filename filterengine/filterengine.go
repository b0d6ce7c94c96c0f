// Package filterengine exposes the filter engine: a module whose
// matching logic lives entirely in script hosted by a jsengine.Engine.
// The Go side only shuttles queries and results across the runtime
// boundary; it knows nothing about filter syntax.
package filterengine

import (
	_ "embed"
	"fmt"

	"go.uber.org/zap"

	"github.com/joeycumines/goja-adblock/jsengine"
)

//go:embed api.js
var defaultAPIScript string

// DefaultAPIGlobal is the global the implementation scripts must
// define.
const DefaultAPIGlobal = "filterEngineAPI"

// Script is a named piece of filter-engine implementation source.
type Script struct {
	Name   string
	Source string
}

// CreationParameters configures filter engine construction.
type CreationParameters struct {
	// Scripts is the runtime-hosted implementation. When empty, a
	// minimal embedded reference script is used.
	Scripts []Script
	// APIGlobal is the name of the global object the scripts define.
	// Defaults to DefaultAPIGlobal.
	APIGlobal string
	// BooleanPrefs preconfigures engine preferences before first use.
	BooleanPrefs map[string]bool
}

// EvaluateFunc evaluates a script source in the runtime. The platform
// supplies one that deduplicates sources already evaluated.
type EvaluateFunc func(name, source string) error

// FilterEngine is a native handle over the script-side engine object.
// All methods are safe for concurrent use; the underlying runtime
// serializes them.
type FilterEngine struct {
	eng *jsengine.Engine
	api *jsengine.Value
	log *zap.Logger
}

// New constructs a FilterEngine by evaluating the implementation
// scripts and binding the API object they define. evaluate may be nil,
// in which case sources are evaluated directly without deduplication.
func New(eng *jsengine.Engine, params CreationParameters, evaluate EvaluateFunc, log *zap.Logger) (*FilterEngine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if evaluate == nil {
		evaluate = func(name, source string) error {
			_, err := eng.Evaluate(name, source)
			return err
		}
	}

	scripts := params.Scripts
	if len(scripts) == 0 {
		scripts = []Script{{Name: "api.js", Source: defaultAPIScript}}
	}
	for _, script := range scripts {
		if err := evaluate(script.Name, script.Source); err != nil {
			return nil, fmt.Errorf("filterengine: evaluating %s: %w", script.Name, err)
		}
	}

	apiGlobal := params.APIGlobal
	if apiGlobal == "" {
		apiGlobal = DefaultAPIGlobal
	}
	api, err := eng.GetGlobal(apiGlobal)
	if err != nil {
		return nil, fmt.Errorf("filterengine: reading API global %q: %w", apiGlobal, err)
	}
	if !api.IsObject() {
		api.Release()
		return nil, fmt.Errorf("filterengine: scripts did not define API object %q", apiGlobal)
	}

	fe := &FilterEngine{eng: eng, api: api, log: log}

	if len(params.BooleanPrefs) > 0 {
		if err := fe.configure(params.BooleanPrefs); err != nil {
			api.Release()
			return nil, err
		}
	}

	log.Debug("filter engine constructed", zap.Int("scripts", len(scripts)))
	return fe, nil
}

func (fe *FilterEngine) configure(prefs map[string]bool) error {
	obj, err := fe.eng.NewObject()
	if err != nil {
		return fmt.Errorf("filterengine: building prefs object: %w", err)
	}
	defer obj.Release()
	for name, value := range prefs {
		if err := obj.SetProperty(name, value); err != nil {
			return fmt.Errorf("filterengine: setting pref %q: %w", name, err)
		}
	}
	result, err := fe.call("configure", obj)
	if err != nil {
		return err
	}
	result.Release()
	return nil
}

// call invokes a method on the script-side API object, converting
// native arguments to runtime values. *jsengine.Value arguments are
// passed through as-is.
func (fe *FilterEngine) call(method string, args ...any) (*jsengine.Value, error) {
	fn, err := fe.api.GetProperty(method)
	if err != nil {
		return nil, fmt.Errorf("filterengine: %s: %w", method, err)
	}
	defer fn.Release()
	if !fn.IsFunction() {
		return nil, fmt.Errorf("filterengine: API object has no method %q", method)
	}

	handles := make([]*jsengine.Value, len(args))
	for i, arg := range args {
		if v, ok := arg.(*jsengine.Value); ok {
			handles[i] = v
			continue
		}
		v, err := fe.eng.NewValue(arg)
		if err != nil {
			return nil, fmt.Errorf("filterengine: %s: converting argument %d: %w", method, i, err)
		}
		defer v.Release()
		handles[i] = v
	}

	result, err := fn.CallOn(fe.api, handles...)
	if err != nil {
		return nil, fmt.Errorf("filterengine: %s: %w", method, err)
	}
	return result, nil
}

// Matches queries the engine for a filter matching the request. A
// result with IsValid() == false means no filter matched.
func (fe *FilterEngine) Matches(url string, mask ContentType, documentURL, sitekey string, specificOnly bool) (Filter, error) {
	result, err := fe.call("match", url, int64(mask), documentURL, sitekey, specificOnly)
	if err != nil {
		return Filter{}, err
	}
	defer result.Release()

	if result.IsNull() || result.IsUndefined() {
		return Filter{}, nil
	}

	text, err := fe.stringProperty(result, "text")
	if err != nil {
		return Filter{}, err
	}
	typ, err := fe.stringProperty(result, "type")
	if err != nil {
		return Filter{}, err
	}
	return Filter{Text: text, Type: FilterType(typ)}, nil
}

// IsContentAllowlisted reports whether the given content is covered by
// an exception rule for any of the document URLs.
func (fe *FilterEngine) IsContentAllowlisted(url string, mask ContentType, documentURLs []string, sitekey string) (bool, error) {
	if documentURLs == nil {
		documentURLs = []string{}
	}
	result, err := fe.call("isContentAllowlisted", url, int64(mask), documentURLs, sitekey)
	if err != nil {
		return false, err
	}
	defer result.Release()
	return result.AsBool()
}

// GetElementHidingStyleSheet returns the element hiding stylesheet for
// a domain.
func (fe *FilterEngine) GetElementHidingStyleSheet(domain string, specificOnly bool) (string, error) {
	result, err := fe.call("elementHidingStyleSheet", domain, specificOnly)
	if err != nil {
		return "", err
	}
	defer result.Release()
	return result.AsString()
}

// GetElementHidingEmulationSelectors returns the selectors hidden for a
// domain.
func (fe *FilterEngine) GetElementHidingEmulationSelectors(domain string) ([]string, error) {
	result, err := fe.call("elementHidingEmulationSelectors", domain)
	if err != nil {
		return nil, err
	}
	defer result.Release()
	return stringList(result)
}

// AddFilter adds a filter rule to the engine.
func (fe *FilterEngine) AddFilter(text string) error {
	result, err := fe.call("addFilter", text)
	if err != nil {
		return err
	}
	result.Release()
	return nil
}

// RemoveFilter removes a filter rule from the engine. Removing an
// unknown rule is a no-op.
func (fe *FilterEngine) RemoveFilter(text string) error {
	result, err := fe.call("removeFilter", text)
	if err != nil {
		return err
	}
	result.Release()
	return nil
}

// ListedFilters returns the texts of the currently configured rules.
func (fe *FilterEngine) ListedFilters() ([]string, error) {
	result, err := fe.call("listFilters")
	if err != nil {
		return nil, err
	}
	defer result.Release()
	return stringList(result)
}

func (fe *FilterEngine) stringProperty(v *jsengine.Value, name string) (string, error) {
	p, err := v.GetProperty(name)
	if err != nil {
		return "", err
	}
	defer p.Release()
	return p.AsString()
}

// stringList converts an array handle into native strings, releasing
// the element handles as it goes.
func stringList(v *jsengine.Value) ([]string, error) {
	items, err := v.AsList()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := item.AsString()
		item.Release()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
