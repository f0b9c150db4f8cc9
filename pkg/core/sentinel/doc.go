// Package sentinel declares the "silent monitor" configuration for a Gemini Live
// session and keeps it installed on whatever session context hosts it.
//
// The package is write-only with respect to the live session: a Controller
// computes a model identifier and a SessionConfig and hands both to injected
// setters. It never reads anything back.
//
// # Behavioral Policy
//
// The configuration carries PolicyDocument as its system instruction. The
// document is natural-language text interpreted by the remote model, but it
// encodes a small state machine that is mirrored here by Decide:
//
//	SILENT ──(statement)──▶ EVALUATING ──(no trigger / unsure)──▶ SILENT
//	                             │
//	                             └──(category 1 or 2)──▶ INTERVENING ──▶ SILENT
//
// INTERVENING lasts for exactly one utterance.
//
// # Usage
//
//	c := sentinel.NewController(logger)
//	c.Mount(sentinel.Deps{Model: liveCtx, Config: liveCtx})
//	// ...dependencies replaced...
//	c.Update(sentinel.Deps{Model: newCtx, Config: newCtx})
//	c.Unmount()
package sentinel
