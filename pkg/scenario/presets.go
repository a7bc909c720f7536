package scenario

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/pkg/client"
	"github.com/driftwatch/driftwatch/pkg/imagegen"
)

// Defaults shared by the presets.
const (
	DefaultDelay           = 500 * time.Millisecond
	DefaultCheckDriftEvery = 10

	defaultBaselineCount = 100
	defaultDriftCount    = 60
	defaultLoadCount     = 50
	defaultRepeatCount   = 200
)

// Preset is a named scenario template. Build produces the concrete Config
// for a service; count <= 0 selects the preset default.
type Preset struct {
	Name        string
	Description string
	Services    []client.Service
	Build       func(service client.Service, count int) Config
}

// Supports reports whether the preset can run against the service.
func (p Preset) Supports(service client.Service) bool {
	for _, s := range p.Services {
		if s == service {
			return true
		}
	}
	return false
}

// ServiceNames returns the supported services as a printable list.
func (p Preset) ServiceNames() string {
	names := make([]string, len(p.Services))
	for i, s := range p.Services {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// Config builds the scenario config, rejecting unsupported services.
func (p Preset) Config(service client.Service, count int) (Config, error) {
	if !service.Valid() {
		return Config{}, fmt.Errorf("unknown service %q (valid: yolo, vqa)", service)
	}
	if !p.Supports(service) {
		return Config{}, fmt.Errorf("scenario %q does not support service %q (valid: %s)",
			p.Name, service, p.ServiceNames())
	}
	return p.Build(service, count), nil
}

var bothServices = []client.Service{client.ServiceYOLO, client.ServiceVQA}

var presets = map[string]Preset{
	"baseline": {
		Name:        "baseline",
		Description: "reset the reference and submit normal images to rebuild it",
		Services:    bothServices,
		Build: func(service client.Service, count int) Config {
			return Config{
				Name:            "baseline",
				Description:     "normal images, fresh reference window",
				Service:         service,
				Count:           pick(count, defaultBaselineCount),
				Delay:           DefaultDelay,
				CheckDriftEvery: DefaultCheckDriftEvery,
				ResetReference:  true,
				Images:          func(i int) imagegen.Options { return imagegen.Baseline(int64(i)) },
				Questions:       SimpleQuestions,
				Expect:          ExpectNoDrift,
			}
		},
	},
	"drift-brightness": {
		Name:        "drift-brightness",
		Description: "submit underexposed images to shift the brightness feature",
		Services:    bothServices,
		Build: func(service client.Service, count int) Config {
			return Config{
				Name:            "drift-brightness",
				Description:     "dark images against a normal reference",
				Service:         service,
				Count:           pick(count, defaultDriftCount),
				Delay:           DefaultDelay,
				CheckDriftEvery: DefaultCheckDriftEvery,
				Images:          func(i int) imagegen.Options { return imagegen.Dark(int64(i)) },
				Questions:       SimpleQuestions,
				Expect:          ExpectDrift,
			}
		},
	},
	"drift-confidence": {
		Name:        "drift-confidence",
		Description: "submit noisy images that depress detection confidence",
		Services:    []client.Service{client.ServiceYOLO},
		Build: func(service client.Service, count int) Config {
			return Config{
				Name:            "drift-confidence",
				Description:     "noisy images against a normal reference",
				Service:         service,
				Count:           pick(count, defaultDriftCount),
				Delay:           DefaultDelay,
				CheckDriftEvery: DefaultCheckDriftEvery,
				Images:          func(i int) imagegen.Options { return imagegen.Noisy(int64(i)) },
				Expect:          ExpectDrift,
			}
		},
	},
	"drift-density": {
		Name:        "drift-density",
		Description: "submit object-crowded images to shift the detection count",
		Services:    []client.Service{client.ServiceYOLO},
		Build: func(service client.Service, count int) Config {
			return Config{
				Name:            "drift-density",
				Description:     "crowded images against a normal reference",
				Service:         service,
				Count:           pick(count, defaultDriftCount),
				Delay:           DefaultDelay,
				CheckDriftEvery: DefaultCheckDriftEvery,
				Images:          func(i int) imagegen.Options { return imagegen.Dense(int64(i)) },
				Expect:          ExpectDrift,
			}
		},
	},
	"drift-complexity": {
		Name:        "drift-complexity",
		Description: "submit long compound questions to shift the question features",
		Services:    []client.Service{client.ServiceVQA},
		Build: func(service client.Service, count int) Config {
			return Config{
				Name:            "drift-complexity",
				Description:     "complex questions against a simple-question reference",
				Service:         service,
				Count:           pick(count, defaultDriftCount),
				Delay:           DefaultDelay,
				CheckDriftEvery: DefaultCheckDriftEvery,
				Images:          func(i int) imagegen.Options { return imagegen.Baseline(int64(i)) },
				Questions:       ComplexQuestions,
				Expect:          ExpectDrift,
			}
		},
	},
	"load-identical": {
		Name:        "load-identical",
		Description: "hammer the backend with one byte-identical image",
		Services:    bothServices,
		Build: func(service client.Service, count int) Config {
			return Config{
				Name:      "load-identical",
				Service:   service,
				Count:     pick(count, defaultLoadCount),
				Delay:     100 * time.Millisecond,
				Images:    func(i int) imagegen.Options { return imagegen.Baseline(0) },
				Questions: SimpleQuestions[:1],
				Expect:    ExpectIgnore,
			}
		},
	},
	"load-similar": {
		Name:        "load-similar",
		Description: "sustained load with near-identical images",
		Services:    bothServices,
		Build: func(service client.Service, count int) Config {
			return Config{
				Name:      "load-similar",
				Service:   service,
				Count:     pick(count, defaultLoadCount),
				Delay:     100 * time.Millisecond,
				Images:    func(i int) imagegen.Options { return imagegen.Variant(int64(i)) },
				Questions: SimpleQuestions,
				Expect:    ExpectIgnore,
			}
		},
	},
	"load-repeat": {
		Name:        "load-repeat",
		Description: "long run cycling a small image set, default 200 requests",
		Services:    bothServices,
		Build: func(service client.Service, count int) Config {
			return Config{
				Name:      "load-repeat",
				Service:   service,
				Count:     pick(count, defaultRepeatCount),
				Delay:     100 * time.Millisecond,
				Images:    func(i int) imagegen.Options { return imagegen.Baseline(int64(i % 10)) },
				Questions: SimpleQuestions,
				Expect:    ExpectIgnore,
			}
		},
	},
}

// GetPreset looks up a preset by name.
func GetPreset(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// ListPresets returns all presets sorted by name.
func ListPresets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DriftSuite returns the preset names the "all" run executes, in order.
// Baseline first so the drifted batches are scored against a fresh
// reference.
func DriftSuite(service client.Service) []string {
	names := []string{"baseline", "drift-brightness"}
	if service == client.ServiceYOLO {
		names = append(names, "drift-confidence", "drift-density")
	} else {
		names = append(names, "drift-complexity")
	}
	return names
}

func pick(count, fallback int) int {
	if count > 0 {
		return count
	}
	return fallback
}
