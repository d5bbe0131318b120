package obconfig

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/magiconair/properties"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the application looks for its properties file.
const DefaultPath = "SampleApp.properties"

// Property keys.
const (
	PropSegment   = "segment"
	PropInIfc     = "in_ifc"
	PropOutIfc    = "out_ifc"
	PropInDump    = "in_dump"
	PropOutDump   = "out_dump"
	PropInUseIfc  = "in_use_ifc"
	PropOutUseIfc = "out_use_ifc"
	PropAlert     = "alert"
	PropPortBlock = "port_block"

	PropTopologySegments  = "topology.segments"
	PropTopologyInstances = "topology.instances"
	PropKafkaBrokers      = "kafka.brokers"
	PropKafkaTopicPrefix  = "kafka.topic_prefix"
	PropPollAttempts      = "poll.attempts"
	PropPollInterval      = "poll.interval"
	PropPollStopOnSuccess = "poll.stop_on_success"
)

// Default property values.
const (
	DefaultSegment   = "220"
	DefaultInIfc     = "eth0"
	DefaultOutIfc    = "eth0"
	DefaultInDump    = "in_dump.pcap"
	DefaultOutDump   = "out_dump.pcap"
	DefaultInUseIfc  = "true"
	DefaultOutUseIfc = "true"
	DefaultAlert     = "true"
	DefaultPortBlock = "80"

	DefaultTopologySegments  = "220"
	DefaultTopologyInstances = "22"
	DefaultKafkaBrokers      = "localhost:9092"
	DefaultKafkaTopicPrefix  = "openbox"
	DefaultPollAttempts      = "10"
	DefaultPollInterval      = "10s"
	DefaultPollStopOnSuccess = "false"
)

var defaults = map[string]string{
	PropSegment:   DefaultSegment,
	PropInIfc:     DefaultInIfc,
	PropOutIfc:    DefaultOutIfc,
	PropInDump:    DefaultInDump,
	PropOutDump:   DefaultOutDump,
	PropInUseIfc:  DefaultInUseIfc,
	PropOutUseIfc: DefaultOutUseIfc,
	PropAlert:     DefaultAlert,
	PropPortBlock: DefaultPortBlock,

	PropTopologySegments:  DefaultTopologySegments,
	PropTopologyInstances: DefaultTopologyInstances,
	PropKafkaBrokers:      DefaultKafkaBrokers,
	PropKafkaTopicPrefix:  DefaultKafkaTopicPrefix,
	PropPollAttempts:      DefaultPollAttempts,
	PropPollInterval:      DefaultPollInterval,
	PropPollStopOnSuccess: DefaultPollStopOnSuccess,
}

// ErrUnsupportedFormat is returned for configuration files that are neither
// properties nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported configuration format")

// Properties is an immutable string key/value set layered over the defaults.
type Properties struct {
	values map[string]string
}

// Defaults returns the default property set.
func Defaults() *Properties {
	return FromMap(nil)
}

// FromMap layers values over the defaults.
func FromMap(values map[string]string) *Properties {
	merged := make(map[string]string, len(defaults)+len(values))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	return &Properties{values: merged}
}

// Get returns the value for key, or the empty string for an unknown key.
func (p *Properties) Get(key string) string {
	return p.values[key]
}

// Keys returns all keys in sorted order.
func (p *Properties) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Load reads the configuration at path. Files ending in .yaml or .yml are
// parsed as YAML, anything else as a Java style properties file. A file that
// cannot be read is not fatal: the failure is logged and the defaults are
// used.
func Load(path string, log *slog.Logger) *Properties {
	values, err := readFile(path)
	if err != nil {
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			abs = path
		}
		log.Error("Cannot load properties file", "path", abs, "error", err)
		log.Error("Using default properties")
		return Defaults()
	}
	return FromMap(values)
}

func readFile(path string) (map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadYAML(f)
	default:
		p, err := properties.LoadFile(path, properties.UTF8)
		if err != nil {
			return nil, err
		}
		return p.Map(), nil
	}
}

// ReadProperties parses properties file syntax.
func ReadProperties(r io.Reader) (map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	p, err := properties.Load(data, properties.UTF8)
	if err != nil {
		return nil, err
	}
	return p.Map(), nil
}

// ReadYAML parses a YAML document. Nested mappings are flattened with dots so
// that
//
//	topology:
//	  segments: 220,221
//
// yields the key "topology.segments". Sequences are joined with commas.
func ReadYAML(r io.Reader) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	out := make(map[string]string)
	if err := flatten("", doc, out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(prefix string, v any, out map[string]string) error {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := flatten(key, child, out); err != nil {
				return err
			}
		}
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			switch item.(type) {
			case map[string]any, []any:
				return fmt.Errorf("%w: nested sequence at %q", ErrUnsupportedFormat, prefix)
			}
			parts = append(parts, fmt.Sprint(item))
		}
		out[prefix] = strings.Join(parts, ",")
	case nil:
		out[prefix] = ""
	default:
		out[prefix] = fmt.Sprint(val)
	}
	return nil
}
