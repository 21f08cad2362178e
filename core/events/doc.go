// Package events defines the typed event contract of a tutoring session.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - assistant_response.*
//   - tool_call.*
//   - assistant_playback.*
//   - turn_state.*
//   - visualization.*
//   - notice.*
//
// Semantics used across the package:
//
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Segment: append-only text piece emitted in stream order.
//   - Final: terminal immutable text for the current stream.
//
// user_input events
//
//   - UserSpeechStarted (user_input.speech_started): speech activity began.
//   - UserSpeechEnded (user_input.speech_ended): speech activity ended.
//   - UserTranscriptUpdated (user_input.transcript_updated): cumulative
//     transcript of the utterance being spoken.
//   - UserUtteranceFinalized (user_input.utterance_finalized): the utterance
//     was finalized and dispatched.
//   - UserUtteranceSuppressed (user_input.utterance_suppressed): the
//     utterance was dropped because the AI is disabled.
//
// assistant_response events
//
//   - AssistantResponseStarted (assistant_response.started): a reply was
//     requested for the turn.
//   - AssistantResponseSegment (assistant_response.segment): streamed reply
//     text.
//   - AssistantResponseSentence (assistant_response.sentence): a complete
//     sentence was cut from the reply and queued for speech.
//   - AssistantResponseFinal (assistant_response.final): the reply stream
//     ended; carries the full text.
//   - AssistantResponseFailed (assistant_response.failed): the reply could
//     not be generated.
//
// tool_call events
//
//   - ToolCallStarted (tool_call.started): the model called a tool.
//
// assistant_playback events
//
//   - AssistantPlaybackStarted (assistant_playback.started): a sentence
//     started playing.
//   - AssistantPlaybackEnded (assistant_playback.ended): a sentence finished
//     playing or was stopped.
//
// turn_state events
//
//   - TurnStateChanged (turn_state.changed): the session moved to a new
//     state; carries the status label.
//   - TurnStarted (turn_state.started): a new turn began with a finalized
//     utterance.
//   - TurnCompleted (turn_state.completed): the reply was spoken in full.
//   - TurnInterrupted (turn_state.interrupted): the user barged in.
//   - TurnCancelled (turn_state.cancelled): the turn was dropped without
//     completing.
//
// visualization events
//
//   - AmplitudeSampled (visualization.amplitude_sampled): periodic level and
//     band magnitudes of the audio that owns the visualization.
//
// notice events
//
//   - NoticeRaised (notice.raised): user-visible message.
package events
