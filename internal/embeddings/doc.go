// Package embeddings turns text into fixed-width vectors.
//
// Providers wrap a concrete model backend: a local ONNX model through
// fastembed, a text-embeddings-inference server, or any OpenAI-compatible
// embeddings API. A Gateway fronts exactly one provider for the whole
// process and lets one embedding call run at a time; callers queue in
// arrival order and may abandon the queue by cancelling their context.
package embeddings
