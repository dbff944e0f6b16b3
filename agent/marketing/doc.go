// Package marketing implements the marketing agent: it drafts a tweet from
// source content with the language model, scores the draft's sentiment and
// engagement potential, publishes it, and notifies the marketing channel.
package marketing
