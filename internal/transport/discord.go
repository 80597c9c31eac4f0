// Package transport adapts the Discord voice gateway to the session router.
// It owns everything Discord-specific: joining the voice channel, opus
// decoding, SSRC bookkeeping and synthesizing speaking edges from silence.
// The router downstream only ever sees decoded PCM and session events.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hraban/opus"

	"github.com/discord-scribe/internal/audio"
	"github.com/discord-scribe/internal/config"
	"github.com/discord-scribe/internal/logging"
	"github.com/discord-scribe/internal/session"
)

// packetQueueSize bounds the ingest channel between the voice receive loop
// and the decode worker. When full, packets are dropped; the receive loop
// must never block.
const packetQueueSize = 256

// Driver receives Discord voice packets and forwards router events.
type Driver struct {
	router         *session.Router
	silenceTimeout time.Duration

	vc      *discordgo.VoiceConnection
	packets chan *discordgo.Packet

	mu         sync.Mutex
	decoders   map[audio.StreamID]*opus.Decoder
	lastPacket map[audio.StreamID]time.Time
	speaking   map[audio.StreamID]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDriver builds a driver feeding events into router.
func NewDriver(router *session.Router, cfg config.DiscordConfig) *Driver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{
		router:         router,
		silenceTimeout: cfg.SilenceTimeout(),
		packets:        make(chan *discordgo.Packet, packetQueueSize),
		decoders:       make(map[audio.StreamID]*opus.Decoder),
		lastPacket:     make(map[audio.StreamID]time.Time),
		speaking:       make(map[audio.StreamID]bool),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Connect joins the voice channel and starts the receive, decode and
// silence-watchdog workers.
func (d *Driver) Connect(s *discordgo.Session, guildID, channelID string) error {
	// Track participants leaving the guild's voice state entirely.
	s.AddHandler(func(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if vs.ChannelID == "" {
			d.router.HandleEvent(session.DisconnectEvent{UserID: vs.UserID})
		}
	})

	vc, err := s.ChannelVoiceJoin(guildID, channelID, true, false)
	if err != nil {
		return fmt.Errorf("voice join failed: %w", err)
	}
	d.vc = vc

	vc.AddHandler(func(_ *discordgo.VoiceConnection, su *discordgo.VoiceSpeakingUpdate) {
		// The voice gateway only reports microphone transmission here;
		// screen-share audio never produces a speaking update.
		d.router.HandleEvent(session.SpeakingStateEvent{
			SSRC:       uint32(su.SSRC),
			UserID:     su.UserID,
			Microphone: true,
		})
	})

	d.wg.Add(1)
	go d.receiveLoop(vc.OpusRecv)
	d.wg.Add(1)
	go d.decodeLoop()
	d.wg.Add(1)
	go d.silenceWatchdog()

	logging.Infow("transport: joined voice channel", "guild", guildID, "channel", channelID)
	return nil
}

// Close stops the workers and leaves the voice channel.
func (d *Driver) Close() error {
	d.cancel()
	d.wg.Wait()
	if d.vc != nil {
		return d.vc.Disconnect()
	}
	return nil
}

// receiveLoop pulls opus packets off the voice connection and enqueues them
// for decoding, dropping when the queue is full.
func (d *Driver) receiveLoop(recv <-chan *discordgo.Packet) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case pkt, ok := <-recv:
			if !ok {
				return
			}
			select {
			case d.packets <- pkt:
			default:
				logging.Warnw("transport: dropping opus packet, queue full", "ssrc", pkt.SSRC)
			}
		}
	}
}

func (d *Driver) decodeLoop() {
	defer d.wg.Done()
	pcm := make([]int16, audio.SamplesPerFrame)
	for {
		select {
		case <-d.ctx.Done():
			return
		case pkt := <-d.packets:
			d.handlePacket(pkt, pcm)
		}
	}
}

func (d *Driver) handlePacket(pkt *discordgo.Packet, pcm []int16) {
	dec, err := d.decoderFor(pkt.SSRC)
	if err != nil {
		logging.Errorw("transport: decoder init failed", "ssrc", pkt.SSRC, "err", err)
		return
	}

	n, err := dec.Decode(pkt.Opus, pcm)
	if err != nil {
		logging.Errorw("transport: opus decode error", "ssrc", pkt.SSRC, "err", err)
		return
	}

	frame := make([]audio.Sample, n*audio.Channels)
	copy(frame, pcm[:n*audio.Channels])

	// First packet after a silence gap: the gateway does not send explicit
	// speaking edges for silence bursts, so synthesize the start edge here.
	d.mu.Lock()
	wasSpeaking := d.speaking[pkt.SSRC]
	d.speaking[pkt.SSRC] = true
	d.lastPacket[pkt.SSRC] = time.Now()
	d.mu.Unlock()

	if !wasSpeaking {
		d.router.HandleEvent(session.SpeakingEvent{SSRC: pkt.SSRC, Speaking: true})
	}
	d.router.HandleEvent(session.FrameEvent{SSRC: pkt.SSRC, PCM: frame})
}

func (d *Driver) decoderFor(ssrc audio.StreamID) (*opus.Decoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dec, ok := d.decoders[ssrc]; ok {
		return dec, nil
	}
	dec, err := opus.NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		return nil, err
	}
	d.decoders[ssrc] = dec
	return dec, nil
}

// silenceWatchdog synthesizes stop-speaking edges for streams that have gone
// quiet, which flushes their buffered utterances downstream.
func (d *Driver) silenceWatchdog() {
	defer d.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			var stopped []audio.StreamID
			d.mu.Lock()
			for ssrc, last := range d.lastPacket {
				if d.speaking[ssrc] && now.Sub(last) >= d.silenceTimeout {
					d.speaking[ssrc] = false
					stopped = append(stopped, ssrc)
				}
			}
			d.mu.Unlock()
			for _, ssrc := range stopped {
				d.router.HandleEvent(session.SpeakingEvent{SSRC: ssrc, Speaking: false})
			}
		}
	}
}
