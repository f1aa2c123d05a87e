// Package messages is the relay's send and history pipeline.
//
// Service.Send persists a message through a Store and only then notifies the
// recipient and the sender over their live channels. Notification runs as an
// independent task after Send has returned its result: it is best-effort, at
// most once per party, and never reported back to the caller.
package messages
