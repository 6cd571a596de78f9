/*
Package domain contains the core vocabulary of the Tapestry command engine.

It defines the closed sets of codes that drive control flow between flows, the
harness and the mode dispatcher, plus the payloads they carry. The package is
kept pure and free of I/O so that every other layer can depend on it.

# Key Entities

  - Progress: outcome of a flow step, grouped into terminal, continue and deferred categories.
  - ClickResult: outcome of a single pointer trigger as seen by a mode handler.
  - Mode: the interaction state the dispatcher is currently in.
  - Trigger: the external input (start, click, motion, answer, preload) fed to a flow.
  - Feedback: a question or message a flow needs the host to show before it can resume.
*/
package domain
