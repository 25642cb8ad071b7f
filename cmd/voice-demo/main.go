// Command voice-demo runs an interactive voice tutoring session from the
// terminal: microphone in, model speech out, barge-in enabled.
//
// Usage:
//
//	go run ./cmd/voice-demo --topic "Photosynthesis" --mode learn
//	go run ./cmd/voice-demo --topic "Go" --concept "goroutines" --mode quiz
//
// Environment variables:
//
//	GOOGLE_API_KEY      - Gemini API key (or use --credentials-url)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phronesislabs/phronesis-voice/internal/log"
	"github.com/phronesislabs/phronesis-voice/pkg/conversation"
	"github.com/phronesislabs/phronesis-voice/pkg/voice"
)

func main() {
	topic := flag.String("topic", "Photosynthesis", "Topic to study")
	concept := flag.String("concept", "", "Optional concept within the topic")
	mode := flag.String("mode", "learn", "Session mode: learn, quiz, scroll, coding")
	credentialsURL := flag.String("credentials-url", "", "Backend endpoint serving the API key")
	voiceName := flag.String("voice", conversation.DefaultVoice, "Synthesized voice name")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showMetrics := flag.Bool("metrics", false, "Print pipeline counters on exit")
	flag.Parse()

	log.Init(*logLevel)

	cfg := voice.DefaultConfig().
		WithMode(conversation.Mode(*mode)).
		WithTopic(*topic, *concept).
		WithAPIKey(os.Getenv("GOOGLE_API_KEY"))
	cfg.CredentialsURL = *credentialsURL
	cfg.Voice = *voiceName

	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ Config error: %v\n", err)
		fmt.Println("\nSet GOOGLE_API_KEY or pass --credentials-url.")
		os.Exit(1)
	}

	sess, err := voice.NewSession(cfg)
	if err != nil {
		fmt.Printf("❌ Failed to create session: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🎙  Phronesis Voice")
	fmt.Println("===================")
	fmt.Printf("Topic: %s", *topic)
	if *concept != "" {
		fmt.Printf(" / %s", *concept)
	}
	fmt.Printf("\nMode:  %s\n\n", *mode)

	sess.OnTranscript(func(role, text string, isFinal bool) {
		if !isFinal {
			return
		}
		switch role {
		case "user":
			fmt.Printf("🗣  you:   %s\n", text)
		default:
			fmt.Printf("🤖 tutor: %s\n", text)
		}
	})

	sess.OnInterruption(func(ev voice.InterruptionEvent) {
		fmt.Printf("✂️  barge-in (%d frames dropped)\n", ev.FramesDiscarded)
	})

	sess.OnCompletion(func(payload json.RawMessage) {
		fmt.Printf("🏁 session summary: %s\n", payload)
	})

	done := make(chan error, 1)
	sess.OnClosed(func(err error) { done <- err })

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = sess.Start(ctx)
	cancel()
	if err != nil {
		fmt.Printf("❌ Failed to start: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("🔊 Session active. Speak any time, interrupting is fine. Ctrl-C to quit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\n🛑 Stopping...")
		_ = sess.Stop()
		<-done
	case err := <-done:
		if err != nil {
			fmt.Printf("❌ Session ended: %v\n", err)
		} else {
			fmt.Println("👋 Session ended.")
		}
	}

	if *showMetrics {
		m := sess.Metrics()
		fmt.Println("\nPipeline counters")
		fmt.Println("-----------------")
		fmt.Printf("frames captured:  %d\n", m.FramesCaptured)
		fmt.Printf("frames sent:      %d\n", m.FramesSent)
		fmt.Printf("frames dropped:   %d\n", m.FramesDropped)
		fmt.Printf("chunks received:  %d\n", m.ChunksReceived)
		fmt.Printf("chunks played:    %d\n", m.ChunksPlayed)
		fmt.Printf("chunks discarded: %d\n", m.ChunksDiscarded)
		fmt.Printf("interruptions:    %d\n", m.Interruptions)
	}
}
