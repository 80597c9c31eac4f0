// Command scribe joins a Discord voice channel and emits a live JSON stream
// of transcribed utterances, one line per message, on stdout. The same
// messages are pushed to websocket subscribers when the HTTP server is
// enabled.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/discord-scribe/internal/config"
	"github.com/discord-scribe/internal/logging"
	"github.com/discord-scribe/internal/metrics"
	"github.com/discord-scribe/internal/server"
	"github.com/discord-scribe/internal/session"
	"github.com/discord-scribe/internal/transcribe"
	"github.com/discord-scribe/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "scribe.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.Logging.Level)
	defer logging.Sync()

	if cfg.Discord.Token == "" {
		logging.FatalExitw("discord bot token required; set discord.token or DISCORD_BOT_TOKEN")
	}
	if cfg.Discord.GuildID == "" || cfg.Discord.VoiceChannelID == "" {
		logging.FatalExitw("discord.guild_id and discord.voice_channel_id are required")
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	engine, err := transcribe.NewClient(cfg.Whisper)
	if err != nil {
		logging.FatalExitw("whisper client init failed", "err", err)
	}
	// The engine holds the model; without it nothing downstream can work, so
	// a failed probe aborts startup.
	probeCtx, probeCancel := context.WithTimeout(context.Background(), cfg.Whisper.Timeout())
	err = engine.Ready(probeCtx)
	probeCancel()
	if err != nil {
		logging.FatalExitw("whisper engine not ready", "err", err)
	}
	logging.Infow("whisper engine ready", "endpoint", cfg.Whisper.Endpoint)

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(cfg.Server.Address, reg)
		srv.Start()
	}

	// Workers emit concurrently; the encoder needs a lock so JSON lines
	// never interleave. Broadcast serializes internally.
	stdout := json.NewEncoder(os.Stdout)
	var stdoutMu sync.Mutex
	emit := func(msg transcribe.Message) {
		stdoutMu.Lock()
		err := stdout.Encode(msg)
		stdoutMu.Unlock()
		if err != nil {
			logging.Warnw("failed to write message to stdout", "err", err)
		}
		if srv != nil {
			srv.Broadcast(msg)
		}
	}

	orch := transcribe.NewOrchestrator(engine, cfg.Whisper, m, emit)

	var sink session.Sink = orch
	if cfg.Audio.SaveDir != "" {
		if err := os.MkdirAll(cfg.Audio.SaveDir, 0o755); err != nil {
			logging.FatalExitw("failed to create save dir", "dir", cfg.Audio.SaveDir, "err", err)
		}
		sink = &session.SavingSink{Dir: cfg.Audio.SaveDir, Next: orch}
	}

	var eventLog *session.EventLog
	if cfg.EventLog.Enabled {
		eventLog, err = session.OpenEventLog(cfg.EventLog.Path)
		if err != nil {
			logging.FatalExitw("failed to open event log", "path", cfg.EventLog.Path, "err", err)
		}
	}

	router := session.NewRouter(sink, m, session.Options{
		EventLog:      eventLog,
		BufferSamples: cfg.Audio.BufferSamples(),
		OnLeave:       orch.ForgetUser,
	})

	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logging.FatalExitw("discord session init failed", "err", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	if err := dg.Open(); err != nil {
		logging.FatalExitw("discord session open failed", "err", err)
	}

	driver := transport.NewDriver(router, cfg.Discord)
	if err := driver.Connect(dg, cfg.Discord.GuildID, cfg.Discord.VoiceChannelID); err != nil {
		_ = dg.Close()
		logging.FatalExitw("voice connect failed", "err", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logging.Infow("shutdown signal received")

	if err := driver.Close(); err != nil {
		logging.Warnw("transport close error", "err", err)
	}
	if err := dg.Close(); err != nil {
		logging.Warnw("discord session close error", "err", err)
	}
	orch.Close()
	if eventLog != nil {
		_ = eventLog.Close()
	}
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(ctx); err != nil {
			logging.Warnw("server shutdown error", "err", err)
		}
		cancel()
	}
	logging.Infow("shutdown complete")
}
