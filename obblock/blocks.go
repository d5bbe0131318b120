package obblock

import "errors"

// ErrInvalidBlock is returned when a block is malformed.
var ErrInvalidBlock = errors.New("invalid block")

// FromDeviceConfig reads packets from a live network interface.
type FromDeviceConfig struct {
	Devname     string `json:"devname"`
	Sniffer     bool   `json:"sniffer"`
	Promiscuous bool   `json:"promisc"`
}

func (FromDeviceConfig) blockKind() Kind { return KindFromDevice }

// FromDumpConfig replays packets from a capture file.
type FromDumpConfig struct {
	Filename string `json:"filename"`
	Timing   bool   `json:"timing"`
	Active   bool   `json:"active"`
}

func (FromDumpConfig) blockKind() Kind { return KindFromDump }

// ToDeviceConfig writes packets to a live network interface.
type ToDeviceConfig struct {
	Devname string `json:"devname"`
}

func (ToDeviceConfig) blockKind() Kind { return KindToDevice }

// ToDumpConfig writes packets to a capture file.
type ToDumpConfig struct {
	Filename string `json:"filename"`
}

func (ToDumpConfig) blockKind() Kind { return KindToDump }

// HeaderClassifierConfig routes each packet to the output port of the first
// matching rule.
type HeaderClassifierConfig struct {
	Rules    []Rule   `json:"rules"`
	Priority Priority `json:"priority"`
}

func (HeaderClassifierConfig) blockKind() Kind { return KindHeaderClassifier }

// AlertConfig raises an alert for every packet passing through.
type AlertConfig struct {
	Message      string `json:"message"`
	Severity     int    `json:"severity"`
	AttachPacket bool   `json:"attach_packet"`
	PacketSize   int    `json:"packet_size"`
}

func (AlertConfig) blockKind() Kind { return KindAlert }

// DiscardConfig drops every packet.
type DiscardConfig struct{}

func (DiscardConfig) blockKind() Kind { return KindDiscard }

// FromDevice returns a source block capturing from devname.
func FromDevice(name, devname string, sniffer, promisc bool) *Block {
	return newBlock(name, 0, 1, FromDeviceConfig{Devname: devname, Sniffer: sniffer, Promiscuous: promisc})
}

// FromDump returns a source block replaying filename.
func FromDump(name, filename string, timing, active bool) *Block {
	return newBlock(name, 0, 1, FromDumpConfig{Filename: filename, Timing: timing, Active: active})
}

// ToDevice returns a sink block transmitting on devname.
func ToDevice(name, devname string) *Block {
	return newBlock(name, 1, 0, ToDeviceConfig{Devname: devname})
}

// ToDump returns a sink block writing to filename.
func ToDump(name, filename string) *Block {
	return newBlock(name, 1, 0, ToDumpConfig{Filename: filename})
}

// HeaderClassifier returns a classifier with one output port per rule. The
// rules are stored sorted by evaluation order (see SortRules).
func HeaderClassifier(name string, rules []Rule, priority Priority) *Block {
	sorted := SortRules(rules)
	return newBlock(name, 1, len(sorted), HeaderClassifierConfig{Rules: sorted, Priority: priority})
}

// Alert returns a pass-through block raising alerts with message.
func Alert(name, message string, severity int, attachPacket bool, packetSize int) *Block {
	return newBlock(name, 1, 1, AlertConfig{
		Message:      message,
		Severity:     severity,
		AttachPacket: attachPacket,
		PacketSize:   packetSize,
	})
}

// Discard returns a terminal block dropping all packets.
func Discard(name string) *Block {
	return newBlock(name, 1, 0, DiscardConfig{})
}

// IsSource reports whether the block produces packets without an input.
func (b *Block) IsSource() bool {
	return b.Kind == KindFromDevice || b.Kind == KindFromDump
}

// IsSink reports whether the block writes packets out of the box.
func (b *Block) IsSink() bool {
	return b.Kind == KindToDevice || b.Kind == KindToDump
}
