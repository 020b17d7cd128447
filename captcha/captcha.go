package captcha

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/logging"
	"github.com/MrEthical07/goGuard/state"
)

const (
	// ImageCount is the number of images in one challenge.
	ImageCount = 6
	// MaxFormIndices is the number of i<n> form fields scanned for clicks.
	MaxFormIndices = 9

	fieldCorrect = "correct_images"
	fieldContext = "context"
)

// Image is one distorted challenge image.
type Image struct {
	Data []byte
	MIME string
}

// DataURI renders the image for direct embedding in HTML.
func (i Image) DataURI() string {
	return "data:" + i.MIME + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Challenge is a rendered one-click challenge.
type Challenge struct {
	Images []Image
	Token  string
}

// Engine builds and validates one-click challenges.
type Engine struct {
	dataset *Dataset
	store   *state.Store
	log     logging.Sink
}

// New returns an Engine drawing images from dataset.
func New(dataset *Dataset, store *state.Store, sink logging.Sink) *Engine {
	return &Engine{dataset: dataset, store: store, log: logging.OrDiscard(sink)}
}

// Create picks one image from the correct category and five decoys, distorts
// and shuffles them, and stores the positions of the correct images with the
// caller's context under a captcha_oneclick state token.
func (e *Engine) Create(ctx context.Context, extra map[string]any) (Challenge, error) {
	cats, err := e.dataset.Categories()
	if err != nil {
		return Challenge{}, err
	}

	type pick struct {
		raw     []byte
		correct bool
	}
	picks := make([]pick, 0, ImageCount)

	first := cats[0].Images
	n, err := internal.RandomInt(len(first))
	if err != nil {
		return Challenge{}, err
	}
	picks = append(picks, pick{raw: first[n], correct: true})

	decoys, err := pickDecoys(cats[1:], ImageCount-len(picks))
	if err != nil {
		return Challenge{}, err
	}
	for _, raw := range decoys {
		picks = append(picks, pick{raw: raw})
	}

	if err := internal.Shuffle(len(picks), func(i, j int) {
		picks[i], picks[j] = picks[j], picks[i]
	}); err != nil {
		return Challenge{}, err
	}

	images := make([]Image, 0, len(picks))
	correct := make([]int, 0, 1)
	for i, p := range picks {
		data, err := Distort(p.raw)
		if err != nil {
			e.log.Log("captcha distortion failed: "+err.Error(), logging.LevelError)
			return Challenge{}, err
		}
		images = append(images, Image{Data: data, MIME: http.DetectContentType(data)})
		if p.correct {
			correct = append(correct, i)
		}
	}

	payload := map[string]any{fieldCorrect: correct}
	if extra != nil {
		payload[fieldContext] = extra
	}
	token, err := e.store.Create(ctx, state.KindCaptchaOneClick, payload)
	if err != nil {
		return Challenge{}, err
	}
	return Challenge{Images: images, Token: token}, nil
}

// Validate consumes token and reports whether clicked selects exactly the
// correct images. Repeated indices count once; any index outside the grid
// fails the answer. On success the context passed to Create is returned.
func (e *Engine) Validate(ctx context.Context, token string, clicked []int) (map[string]any, bool) {
	entry, err := e.store.ReadKind(ctx, token, state.KindCaptchaOneClick, true)
	if err != nil {
		return nil, false
	}

	want, _ := normalize(entry.Ints(fieldCorrect))
	got, ok := normalize(clicked)
	if !ok || len(want) == 0 || !slices.Equal(want, got) {
		return nil, false
	}

	stored, _ := entry.Data[fieldContext].(map[string]any)
	if stored == nil {
		stored = map[string]any{}
	}
	return stored, true
}

// pickDecoys draws n images by first choosing a category uniformly and then an
// image inside it, so large categories are not over-represented. Empty
// categories are skipped.
func pickDecoys(cats []Category, n int) ([][]byte, error) {
	var pool []Category
	for _, c := range cats {
		if len(c.Images) > 0 {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return nil, ErrEmptyDataset
	}
	out := make([][]byte, 0, n)
	for len(out) < n {
		c, err := internal.RandomInt(len(pool))
		if err != nil {
			return nil, err
		}
		imgs := pool[c].Images
		i, err := internal.RandomInt(len(imgs))
		if err != nil {
			return nil, err
		}
		out = append(out, imgs[i])
	}
	return out, nil
}

// normalize sorts and deduplicates indices. It reports false when one lies
// outside the image grid.
func normalize(indices []int) ([]int, bool) {
	out := slices.Clone(indices)
	for _, i := range out {
		if i < 0 || i >= ImageCount {
			return nil, false
		}
	}
	slices.Sort(out)
	return slices.Compact(out), true
}

// ClickedIndices collects clicked image indices from a request: the first
// character of the "i" query parameter (no-script single click) and form
// fields i0 through i8 that carry any value.
func ClickedIndices(query string, form func(string) string) []int {
	var out []int
	if query != "" {
		if n, err := strconv.Atoi(query[:1]); err == nil {
			out = append(out, n)
		}
	}
	if form == nil {
		return out
	}
	for i := 0; i < MaxFormIndices; i++ {
		if form(fmt.Sprintf("i%d", i)) != "" {
			out = append(out, i)
		}
	}
	return out
}
