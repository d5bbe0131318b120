package obproto

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/wyatuestc/moonlight/obblock"
	"github.com/wyatuestc/moonlight/obgraph"
)

func TestLocation(t *testing.T) {
	t.Run("zero value is unresolved", func(t *testing.T) {
		var l Location
		assert.False(t, l.IsResolved())
		assert.Equal(t, "unresolved", l.String())
	})

	t.Run("segment", func(t *testing.T) {
		l := SegmentLocation(220)
		assert.True(t, l.IsResolved())
		assert.Equal(t, LocationSegment, l.Kind())
		assert.Equal(t, int64(220), l.ID())
		assert.Equal(t, "segment:220", l.String())
	})

	t.Run("parse round trip", func(t *testing.T) {
		for _, l := range []Location{SegmentLocation(220), InstanceLocation(22)} {
			parsed, err := ParseLocation(l.String())
			assert.NoError(t, err)
			assert.Equal(t, l, parsed)
		}
	})

	t.Run("parse rejects garbage", func(t *testing.T) {
		for _, s := range []string{"", "segment:", "segment:abc", "rack:1"} {
			_, err := ParseLocation(s)
			assert.True(t, errors.Is(err, ErrLocationUnresolved), s)
		}
	})
}

func TestNewStatement(t *testing.T) {
	src := obblock.FromDevice("src", "eth0", true, true)
	drop := obblock.Discard("drop")
	g := obgraph.MustBuild([]*obblock.Block{src, drop}, []obgraph.Connector{obgraph.Connect(src, 0, drop)}, src)

	t.Run("valid", func(t *testing.T) {
		st, err := NewStatement(SegmentLocation(220), g)
		assert.NoError(t, err)
		assert.Equal(t, SegmentLocation(220), st.Location())
		assert.Equal(t, g, st.Graph())

		data, err := json.Marshal(st)
		assert.NoError(t, err)
		var decoded map[string]any
		assert.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "segment:220", decoded["location"])
		assert.NotZero(t, decoded["processing_graph"])
	})

	t.Run("unresolved location", func(t *testing.T) {
		_, err := NewStatement(Location{}, g)
		assert.True(t, errors.Is(err, ErrInvalidStatement))
	})

	t.Run("missing graph", func(t *testing.T) {
		_, err := NewStatement(SegmentLocation(220), nil)
		assert.True(t, errors.Is(err, ErrInvalidStatement))
	})
}

func TestCodec(t *testing.T) {
	t.Run("alert", func(t *testing.T) {
		in := Alert{
			Origin: InstanceLocation(22),
			Block:  "Alert_SampleApp",
			Messages: []AlertMessage{
				{Message: "first", Packet: []byte{0x45, 0x00}},
				{Message: "second"},
			},
		}
		data, err := Encode(TypeAlert, "", in)
		assert.NoError(t, err)

		xid, out, err := Decode(data)
		assert.NoError(t, err)
		assert.Equal(t, "", xid)
		assert.Equal(t, in, out.(Alert))
	})

	t.Run("read response keeps xid", func(t *testing.T) {
		in := ReadResponse{Block: "monkey", Handle: "business", Result: "42"}
		data, err := Encode(TypeReadResponse, "xid-1", in)
		assert.NoError(t, err)

		xid, out, err := Decode(data)
		assert.NoError(t, err)
		assert.Equal(t, "xid-1", xid)
		assert.Equal(t, in, out.(ReadResponse))
	})

	t.Run("error", func(t *testing.T) {
		in := Error{Type: ErrorTypeBlockNotFound, Message: "no such block"}
		data, err := Encode(TypeError, "xid-2", in)
		assert.NoError(t, err)

		_, out, err := Decode(data)
		assert.NoError(t, err)
		assert.Equal(t, in, out.(Error))
	})

	t.Run("instance up with unresolved name", func(t *testing.T) {
		in := InstanceUp{Instance: InstanceLocation(22)}
		data, err := Encode(TypeInstanceUp, "", in)
		assert.NoError(t, err)

		_, out, err := Decode(data)
		assert.NoError(t, err)
		assert.Equal(t, in, out.(InstanceUp))
	})

	t.Run("unknown type", func(t *testing.T) {
		_, _, err := Decode([]byte(`{"type":"bogus","payload":{}}`))
		assert.True(t, errors.Is(err, ErrUnknownMessage))
	})

	t.Run("malformed", func(t *testing.T) {
		_, _, err := Decode([]byte(`{`))
		assert.Error(t, err)
	})
}

func TestReadResult(t *testing.T) {
	assert.True(t, ReadResult{Response: &ReadResponse{}}.Succeeded())
	assert.False(t, ReadResult{Err: &Error{}}.Succeeded())
}
