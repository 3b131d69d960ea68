package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// MaxPacketSize максимальный размер полезной нагрузки кадра
	MaxPacketSize = 8192
	// CompressionThreshold тела больше этого размера сжимаются zstd
	CompressionThreshold = 1024
	// ProtocolVersion версия протокола в метаданных боевых событий
	ProtocolVersion = "1.0.0"

	frameHeaderSize     = 4
	maxDecompressedBody = 1 << 20
)

var (
	ErrPacketTooLarge = errors.New("packet too large")
	ErrEmptyFrame     = errors.New("empty frame")
	ErrUnknownPacket  = errors.New("unknown packet type")
	ErrMalformed      = errors.New("malformed envelope")
)

// Compression тип сжатия тела
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
)

// Номера полей конверта
const (
	fieldType        protowire.Number = 1
	fieldTimestamp   protowire.Number = 2
	fieldSequence    protowire.Number = 3
	fieldCompression protowire.Number = 4
	fieldBody        protowire.Number = 5
)

// Envelope транспортный конверт: тег, метаданные и тело пакета
type Envelope struct {
	Type        PacketType
	Timestamp   int64 // unix nanos
	Sequence    uint32
	Compression Compression
	Body        []byte
}

// Marshal кодирует конверт в wire-формат protobuf
func (e *Envelope) Marshal() []byte {
	b := make([]byte, 0, len(e.Body)+24)
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Type))
	b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Timestamp))
	if e.Sequence != 0 {
		b = protowire.AppendTag(b, fieldSequence, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Sequence))
	}
	if e.Compression != CompressionNone {
		b = protowire.AppendTag(b, fieldCompression, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Compression))
	}
	b = protowire.AppendTag(b, fieldBody, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Body)
	return b
}

// UnmarshalEnvelope разбирает конверт; неизвестные поля пропускаются
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	env := &Envelope{}
	seenType := false
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case typ == protowire.VarintType && num != fieldBody:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			data = data[m:]
			switch num {
			case fieldType:
				env.Type = PacketType(v)
				seenType = true
			case fieldTimestamp:
				env.Timestamp = int64(v)
			case fieldSequence:
				env.Sequence = uint32(v)
			case fieldCompression:
				env.Compression = Compression(v)
			}
		case typ == protowire.BytesType && num == fieldBody:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			data = data[m:]
			env.Body = v
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			data = data[m:]
		}
	}
	if !seenType {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

// Codec сериализует пакеты в конверты. Безопасен для конкурентного использования.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec создаёт кодек со своими zstd кодировщиками
func NewCodec() (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecompressedBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Codec{encoder: enc, decoder: dec}, nil
}

var (
	defaultCodec     *Codec
	defaultCodecOnce sync.Once
)

// DefaultCodec общий кодек процесса
func DefaultCodec() *Codec {
	defaultCodecOnce.Do(func() {
		c, err := NewCodec()
		if err != nil {
			panic(err)
		}
		defaultCodec = c
	})
	return defaultCodec
}

// Encode сериализует пакет: JSON тело, zstd для больших тел, protobuf конверт
func (c *Codec) Encode(p Packet, seq uint32, now time.Time) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal packet %d: %w", p.Type(), err)
	}

	env := Envelope{
		Type:      p.Type(),
		Timestamp: now.UnixNano(),
		Sequence:  seq,
		Body:      body,
	}
	if len(body) > CompressionThreshold {
		env.Body = c.encoder.EncodeAll(body, make([]byte, 0, len(body)/2))
		env.Compression = CompressionZstd
	}

	data := env.Marshal()
	if len(data) > MaxPacketSize {
		return nil, fmt.Errorf("%w: %d bytes (type %d)", ErrPacketTooLarge, len(data), p.Type())
	}
	return data, nil
}

// Decode разбирает полезную нагрузку кадра в типизированный пакет
func (c *Codec) Decode(data []byte) (Packet, *Envelope, error) {
	env, err := UnmarshalEnvelope(data)
	if err != nil {
		return nil, nil, err
	}

	p := newPacket(env.Type)
	if p == nil {
		return nil, env, fmt.Errorf("%w: %d", ErrUnknownPacket, env.Type)
	}

	body := env.Body
	switch env.Compression {
	case CompressionNone:
	case CompressionZstd:
		body, err = c.decoder.DecodeAll(env.Body, nil)
		if err != nil {
			return nil, env, fmt.Errorf("failed to decompress packet %d: %w", env.Type, err)
		}
	default:
		return nil, env, fmt.Errorf("%w: compression %d", ErrMalformed, env.Compression)
	}

	if err := json.Unmarshal(body, p); err != nil {
		return nil, env, fmt.Errorf("failed to unmarshal packet %d: %w", env.Type, err)
	}
	return p, env, nil
}

// WriteFrame пишет кадр: 4 байта длины little-endian и полезная нагрузка, одной записью
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyFrame
	}
	if len(payload) > MaxPacketSize {
		return ErrPacketTooLarge
	}
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)

	n, err := w.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return io.ErrShortWrite
	}
	return nil
}

// ReadFrame читает один кадр, проверяя 0 < длина <= MaxPacketSize
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(header[:])
	if length == 0 {
		return nil, ErrEmptyFrame
	}
	if length > MaxPacketSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
