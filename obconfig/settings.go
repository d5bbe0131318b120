package obconfig

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wyatuestc/moonlight/obblock"
)

var validate = validator.New()

// Settings are the typed configuration values, parsed once at startup and
// shared read-only afterwards.
type Settings struct {
	Segment int64

	InIfc     string
	OutIfc    string
	InDump    string
	OutDump   string
	InUseIfc  bool
	OutUseIfc bool

	Alert     bool
	PortBlock obblock.TransportPort

	TopologySegments  []int64
	TopologyInstances []int64

	KafkaBrokers     []string
	KafkaTopicPrefix string

	PollAttempts      int
	PollInterval      time.Duration
	PollStopOnSuccess bool
}

// Input describes the packet source the settings select.
func (s Settings) Input() string {
	if s.InUseIfc {
		return s.InIfc
	}
	return s.InDump
}

// Output describes the packet sink the settings select.
func (s Settings) Output() string {
	if s.OutUseIfc {
		return s.OutIfc
	}
	return s.OutDump
}

// DefaultSettings returns the settings of the default property set.
func DefaultSettings() Settings {
	return Defaults().Settings(slog.New(slog.DiscardHandler))
}

// Settings parses the typed settings. A malformed value never fails: it is
// logged and replaced by its default.
func (p *Properties) Settings(log *slog.Logger) Settings {
	r := &reader{p: p, log: log}

	port := r.int(PropPortBlock, "min=0,max=65535")

	return Settings{
		Segment: int64(r.int(PropSegment, "min=0")),

		InIfc:     r.string(PropInIfc),
		OutIfc:    r.string(PropOutIfc),
		InDump:    r.string(PropInDump),
		OutDump:   r.string(PropOutDump),
		InUseIfc:  r.bool(PropInUseIfc),
		OutUseIfc: r.bool(PropOutUseIfc),

		Alert:     r.bool(PropAlert),
		PortBlock: obblock.TransportPort(port),

		TopologySegments:  r.ints(PropTopologySegments, "min=0"),
		TopologyInstances: r.ints(PropTopologyInstances, "min=0"),

		KafkaBrokers:     r.list(PropKafkaBrokers),
		KafkaTopicPrefix: r.string(PropKafkaTopicPrefix),

		PollAttempts:      r.int(PropPollAttempts, "min=1,max=1000"),
		PollInterval:      r.duration(PropPollInterval, "min=0"),
		PollStopOnSuccess: r.bool(PropPollStopOnSuccess),
	}
}

type reader struct {
	p   *Properties
	log *slog.Logger
}

func (r *reader) fallback(key, reason string) string {
	def := defaults[key]
	r.log.Warn("Error parsing property, using default", "property", key, "value", r.p.Get(key), "reason", reason, "default", def)
	return def
}

func (r *reader) string(key string) string {
	v := strings.TrimSpace(r.p.Get(key))
	if v == "" {
		return r.fallback(key, "empty")
	}
	return v
}

func (r *reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(r.string(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *reader) int(key, rule string) int {
	v, err := parseInt(r.p.Get(key), rule)
	if err != nil {
		v, _ = parseInt(r.fallback(key, err.Error()), rule)
	}
	return v
}

func parseInt(s, rule string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if err := validate.Var(v, rule); err != nil {
		return 0, err
	}
	return v, nil
}

func (r *reader) ints(key, rule string) []int64 {
	parse := func(s string) ([]int64, error) {
		var out []int64
		for _, part := range strings.Split(s, ",") {
			v, err := parseInt(part, rule)
			if err != nil {
				return nil, err
			}
			out = append(out, int64(v))
		}
		return out, nil
	}
	out, err := parse(r.p.Get(key))
	if err != nil {
		out, _ = parse(r.fallback(key, err.Error()))
	}
	return out
}

func (r *reader) bool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.p.Get(key)))
	if err != nil {
		v, _ = strconv.ParseBool(r.fallback(key, err.Error()))
	}
	return v
}

func (r *reader) duration(key, rule string) time.Duration {
	parse := func(s string) (time.Duration, error) {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return 0, err
		}
		if err := validate.Var(d, rule); err != nil {
			return 0, err
		}
		return d, nil
	}
	d, err := parse(r.p.Get(key))
	if err != nil {
		d, _ = parse(r.fallback(key, err.Error()))
	}
	return d
}
