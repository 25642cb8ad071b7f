// Package voice implements the real-time voice conversation pipeline:
// microphone capture, uplink streaming to the conversational AI service,
// ordered playback of synthesized speech, and barge-in: cutting off AI
// audio the moment the user starts talking over it.
//
// The pipeline runs three concurrent activities for the lifetime of an
// active session: capture-and-uplink at the input device's frame cadence,
// downlink receipt driven by the remote channel, and a sequential playback
// drain. Capture never waits on playback and playback never waits on
// capture; the only shared state is the DownlinkQueue and the
// InterruptionController.
//
// Typical use:
//
//	cfg := voice.DefaultConfig()
//	cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
//	cfg.Topic = "Data Structures"
//	cfg.Mode = conversation.ModeLearn
//
//	session, err := voice.NewSession(cfg)
//	if err != nil { ... }
//	if err := session.Start(ctx); err != nil { ... }
//	defer session.Stop()
package voice
