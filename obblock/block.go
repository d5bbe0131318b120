package obblock

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// namespace seeds name-based block ids so that a block keeps its id across
// process restarts and redeployments.
var namespace = uuid.MustParse("8c6b3f2e-54a1-4d1e-9b0f-6f1f3c3f0b7a")

// ID is the stable identity of a block. It is derived from the block name.
type ID uuid.UUID

// NewID returns the stable id for a block name.
func NewID(name string) ID {
	return ID(uuid.NewSHA1(namespace, []byte(name)))
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}

// Kind identifies the processing behavior a block has on the box.
type Kind int

const (
	KindFromDevice Kind = iota
	KindFromDump
	KindToDevice
	KindToDump
	KindHeaderClassifier
	KindAlert
	KindDiscard
)

func (k Kind) String() string {
	switch k {
	case KindFromDevice:
		return "FromDevice"
	case KindFromDump:
		return "FromDump"
	case KindToDevice:
		return "ToDevice"
	case KindToDump:
		return "ToDump"
	case KindHeaderClassifier:
		return "HeaderClassifier"
	case KindAlert:
		return "Alert"
	case KindDiscard:
		return "Discard"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Port is a numbered input or output of a block.
type Port struct {
	Index int `json:"index"`
}

func ports(n int) []Port {
	p := make([]Port, n)
	for i := range p {
		p[i] = Port{Index: i}
	}
	return p
}

// Block is a named processing unit executed by the engine on the box.
// Blocks are created by the topology selector and must not be modified once
// they are part of a graph.
type Block struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	Kind    Kind   `json:"type"`
	Inputs  []Port `json:"inputs"`
	Outputs []Port `json:"outputs"`
	Config  Config `json:"config"`
}

// Config holds the kind specific parameters of a block.
type Config interface {
	blockKind() Kind
}

func newBlock(name string, inputs, outputs int, cfg Config) *Block {
	return &Block{
		ID:      NewID(name),
		Name:    name,
		Kind:    cfg.blockKind(),
		Inputs:  ports(inputs),
		Outputs: ports(outputs),
		Config:  cfg,
	}
}

// HasOutput reports whether port is a declared output port.
func (b *Block) HasOutput(port int) bool {
	return port >= 0 && port < len(b.Outputs)
}

// HasInput reports whether port is a declared input port.
func (b *Block) HasInput(port int) bool {
	return port >= 0 && port < len(b.Inputs)
}

// Validate checks the block name and that the id matches the name.
func (b *Block) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("%w: block name cannot be empty", ErrInvalidBlock)
	}
	if strings.ContainsAny(b.Name, " \t\n\r") {
		return fmt.Errorf("%w: block name %q cannot contain whitespace", ErrInvalidBlock, b.Name)
	}
	if b.Config == nil {
		return fmt.Errorf("%w: block %q has no config", ErrInvalidBlock, b.Name)
	}
	if b.Config.blockKind() != b.Kind {
		return fmt.Errorf("%w: block %q is %s but carries %s config",
			ErrInvalidBlock, b.Name, b.Kind, b.Config.blockKind())
	}
	return nil
}

// Clone returns a deep copy of b.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := *b
	c.Inputs = slices.Clone(b.Inputs)
	c.Outputs = slices.Clone(b.Outputs)
	if cfg, ok := b.Config.(HeaderClassifierConfig); ok {
		rules := make([]Rule, len(cfg.Rules))
		for i, r := range cfg.Rules {
			r.Match.Exact = slices.Clone(r.Match.Exact)
			rules[i] = r
		}
		cfg.Rules = rules
		c.Config = cfg
	}
	return &c
}

func (b *Block) String() string {
	return fmt.Sprintf("%s(%s)", b.Kind, b.Name)
}
