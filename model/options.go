package model

import (
	"bytes"
	"encoding/json"
)

// DistZip describes the zip archive written after a build.
type DistZip struct {
	OutFileName string `json:"outFileName" yaml:"outFileName"`
	OutDir      string `json:"outDir" yaml:"outDir"`
}

// ImageOptimizer enables image optimization. Options are passed to the
// optimizer untouched.
type ImageOptimizer struct {
	Options map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`
}

// TopBar selects which parts of the portal top bar are injected into the
// template page.
type TopBar struct {
	AddRootElement             bool `json:"addRootElement" yaml:"addRootElement"`
	AddSharedComponentsScripts bool `json:"addSharedComponentsScripts" yaml:"addSharedComponentsScripts"`
}

// Enabled reports whether any part of the top bar is injected.
func (t TopBar) Enabled() bool {
	return t.AddRootElement || t.AddSharedComponentsScripts
}

const (
	msgDistZip        = "distZip must be a boolean or an object with outFileName and outDir strings"
	msgImageOptimizer = "imageOptimizer must be a boolean or an object"
	msgTopBar         = "integrateMiTopBar must be a boolean or an object with addRootElement and addSharedComponentsScripts booleans"
)

func absent(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0
}

// flag decodes raw as a boolean. ok is false when raw holds anything else.
func flag(raw json.RawMessage) (v, ok bool) {
	ok = json.Unmarshal(raw, &v) == nil && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
	return
}

// object decodes raw as a JSON object. null is not an object.
func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	var m map[string]json.RawMessage
	if json.Unmarshal(raw, &m) != nil || m == nil {
		return nil, false
	}
	return m, true
}

func normalizeDistZip(raw json.RawMessage, templateName, outDir string) (*DistZip, error) {
	if absent(raw) {
		return nil, nil
	}
	def := &DistZip{OutFileName: templateName + ".zip", OutDir: outDir}
	if v, ok := flag(raw); ok {
		if !v {
			return nil, nil
		}
		return def, nil
	}
	m, ok := object(raw)
	if !ok {
		return nil, invalid(msgDistZip)
	}
	for key, dst := range map[string]*string{"outFileName": &def.OutFileName, "outDir": &def.OutDir} {
		v, present := m[key]
		if !present {
			continue
		}
		var s string
		if json.Unmarshal(v, &s) != nil || s == "" {
			return nil, invalid(msgDistZip)
		}
		*dst = s
	}
	return def, nil
}

func normalizeImageOptimizer(raw json.RawMessage) (*ImageOptimizer, error) {
	if absent(raw) {
		return nil, nil
	}
	if v, ok := flag(raw); ok {
		if !v {
			return nil, nil
		}
		return &ImageOptimizer{}, nil
	}
	var opts map[string]interface{}
	if json.Unmarshal(raw, &opts) != nil || opts == nil {
		return nil, invalid(msgImageOptimizer)
	}
	return &ImageOptimizer{Options: opts}, nil
}

// normalizeTopBar expands integrateMiTopBar. Injecting the top bar requires
// the portal HUD to be off.
func normalizeTopBar(raw json.RawMessage, miHudLess bool) (TopBar, error) {
	var t TopBar
	if absent(raw) {
		return t, nil
	}
	if v, ok := flag(raw); ok {
		t = TopBar{AddRootElement: v, AddSharedComponentsScripts: v}
	} else {
		m, ok := object(raw)
		if !ok {
			return t, invalid(msgTopBar)
		}
		for key, dst := range map[string]*bool{
			"addRootElement":             &t.AddRootElement,
			"addSharedComponentsScripts": &t.AddSharedComponentsScripts,
		} {
			v, present := m[key]
			if !present {
				continue
			}
			if *dst, ok = flag(v); !ok {
				return TopBar{}, invalid(msgTopBar)
			}
		}
	}
	if t.Enabled() && !miHudLess {
		return TopBar{}, invalid("%s; it also requires miHudLess", msgTopBar)
	}
	return t, nil
}
