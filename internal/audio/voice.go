package audio

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/ankogit/4duk-recorder/internal/frame"
)

// SpeakerHandler receives one decoded 20 ms stereo chunk for a speaker
type SpeakerHandler func(ssrc uint32, chunk [][]float32) error

// VoiceReceiver decodes the Opus packets Discord delivers for each speaker
type VoiceReceiver struct {
	pool   *DecoderPool
	logger logrus.FieldLogger
}

// NewVoiceReceiver creates a receiver that decodes with decoders from pool
func NewVoiceReceiver(pool *DecoderPool, logger logrus.FieldLogger) *VoiceReceiver {
	return &VoiceReceiver{pool: pool, logger: logger}
}

// Run reads packets (normally vc.OpusRecv) until the channel closes or ctx
// is done. Undecodable packets are logged and skipped. A handler error stops
// the receiver.
func (r *VoiceReceiver) Run(ctx context.Context, packets <-chan *discordgo.Packet, handle SpeakerHandler) error {
	defer r.pool.Clear()

	pcm := make([]float32, FrameSize*Channels)
	var chunk [][]float32

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-packets:
			if !ok {
				return nil
			}
			if pkt == nil || len(pkt.Opus) == 0 {
				continue
			}

			decoder, err := r.pool.GetOrCreate(pkt.SSRC)
			if err != nil {
				r.logger.WithError(err).Warnf("SSRC %d: no decoder", pkt.SSRC)
				continue
			}
			n, err := decoder.DecodeFloat32(pkt.Opus, pcm)
			if err != nil {
				r.logger.WithError(err).Debugf("SSRC %d: opus decode error", pkt.SSRC)
				continue
			}
			if n == 0 {
				continue
			}

			chunk = frame.Deinterleave(chunk, pcm[:n*Channels], Channels)
			if err := handle(pkt.SSRC, chunk); err != nil {
				return err
			}
		}
	}
}
