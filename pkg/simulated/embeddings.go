package simulated

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/proxy/types"
)

// maxPromptText bounds how much input text is quoted in the prompt.
const maxPromptText = 500

// Embeddings produces pseudo-embeddings. Vectors are not suitable for
// similarity search.
func (e *Engine) Embeddings(ctx context.Context, req *types.EmbeddingRequest) (Simulated[*types.EmbeddingResponse], error) {
	if len(req.Input) == 0 {
		return Simulated[*types.EmbeddingResponse]{}, apierror.Validation("input", "input is required")
	}
	dims := e.embeddings.DefaultDimensions
	if req.Dimensions != nil {
		if *req.Dimensions <= 0 {
			return Simulated[*types.EmbeddingResponse]{}, apierror.Validation("dimensions", "dimensions must be positive")
		}
		dims = *req.Dimensions
	}
	switch req.EncodingFormat {
	case "", "float", "base64":
	default:
		return Simulated[*types.EmbeddingResponse]{}, apierror.Validation("encoding_format", "encoding_format must be 'float' or 'base64'")
	}

	bot := e.EmbeddingBot(req.Model)
	e.logger.Debug("generating simulated embeddings", "model", req.Model, "bot", bot, "inputs", len(req.Input), "dimensions", dims)

	data := make([]types.EmbeddingDatum, 0, len(req.Input))
	for i, text := range req.Input {
		reply, err := e.ask(ctx, bot, embeddingPrompt(text, min(dims, e.embeddings.PromptDimensions)))
		if err != nil {
			return Simulated[*types.EmbeddingResponse]{}, err
		}
		vec, ok := parseVector(reply)
		if !ok {
			e.logger.Warn("unparsable embedding reply, using hash vector", "index", i)
			vec = hashVector(text, dims)
		}
		vec = shape(vec, text, dims)

		datum := types.EmbeddingDatum{Object: types.ObjectEmbedding, Index: i, Embedding: vec}
		if req.EncodingFormat == "base64" {
			datum.Embedding = encodeFloat32(vec)
		}
		data = append(data, datum)
	}

	n := e.embedTokens.EstimateAll(req.Input)
	return wrap(&types.EmbeddingResponse{
		Object: types.ObjectList,
		Data:   data,
		Model:  req.Model,
		Usage:  types.EmbeddingUsage{PromptTokens: n, TotalTokens: n},
	}), nil
}

// EmbeddingBot maps an embedding model name to the bot that answers it.
func (e *Engine) EmbeddingBot(model string) string {
	if bot, ok := e.embeddings.ModelMap[model]; ok {
		return bot
	}
	return e.embeddings.BackendModel
}

func embeddingPrompt(text string, n int) string {
	quoted := text
	if len(quoted) > maxPromptText {
		cut := maxPromptText
		for cut > 0 && !utf8.RuneStart(quoted[cut]) {
			cut--
		}
		quoted = quoted[:cut] + "..."
	}
	return fmt.Sprintf("Analyze the following text and provide a numerical representation:\n\n"+
		"Text: %q\n\n"+
		"Provide a JSON array of %d floating-point numbers between -1 and 1 that represents "+
		"the semantic content of this text. The numbers should capture different aspects "+
		"like sentiment, topic, complexity, etc.\n\n"+
		"Important: Respond with ONLY the JSON array, no other text. "+
		"Example format: [0.123, -0.456, 0.789, ...]", quoted, n)
}

// parseVector reads a JSON array of numbers from a model reply.
func parseVector(reply string) ([]float64, bool) {
	body := stripFences(reply)
	if !gjson.Valid(body) {
		return nil, false
	}
	arr := gjson.Parse(body)
	if !arr.IsArray() {
		return nil, false
	}
	var vec []float64
	ok := true
	arr.ForEach(func(_, v gjson.Result) bool {
		if v.Type != gjson.Number {
			ok = false
			return false
		}
		vec = append(vec, v.Float())
		return true
	})
	return vec, ok && len(vec) > 0
}

// seed derives a deterministic generator from the text.
func seed(text string) *rand.Rand {
	sum := sha256.Sum256([]byte(text))
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:16])))
}

// shape pads or truncates vec to dims and clamps every value to [-1, 1].
// Padding depends only on the text, so equal inputs give equal vectors.
func shape(vec []float64, text string, dims int) []float64 {
	if len(vec) > dims {
		vec = vec[:dims]
	}
	if len(vec) < dims {
		r := seed(text)
		for len(vec) < dims {
			vec = append(vec, r.Float64()*0.2-0.1)
		}
	}
	for i, v := range vec {
		vec[i] = math.Max(-1, math.Min(1, v))
	}
	return vec
}

// hashVector is used when the reply cannot be parsed.
func hashVector(text string, dims int) []float64 {
	r := seed(text)
	lower := strings.ToLower(text)
	positive := strings.Contains(lower, "good") || strings.Contains(lower, "great") || strings.Contains(lower, "excellent")

	vec := make([]float64, dims)
	for i := range vec {
		switch i % 10 {
		case 0:
			if positive {
				vec[i] = 0.1
			} else {
				vec[i] = -0.1
			}
		case 1:
			vec[i] = math.Min(1, float64(len(text))/1000) - 0.5
		default:
			vec[i] = r.Float64() - 0.5
		}
	}
	return vec
}

// encodeFloat32 packs vec as little-endian float32 values in base64.
func encodeFloat32(vec []float64) string {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
	}
	return base64.StdEncoding.EncodeToString(buf)
}
