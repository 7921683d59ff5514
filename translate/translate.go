// Package translate converts user queries between the two retrieval
// languages before the translated-language content search runs.
package translate

import "context"

type Translator interface {
	Translate(ctx context.Context, text, fromLang, toLang string) (string, error)
}
