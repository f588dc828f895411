// Package keyframe turns a decoded frame sequence into a bounded set of
// scene-change keyframes.
//
// A run walks the stream with a Sampler, scores each sampled frame against the
// previous sampled frame with a Scorer, ranks the resulting candidates with a
// Selector and writes the survivors to disk with a Materializer. Every stage is
// sequential: a score depends on the frame sampled just before it.
package keyframe
