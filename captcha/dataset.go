package captcha

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/MrEthical07/goGuard/logging"
)

// ErrEmptyDataset is returned when no usable dataset could be loaded. A
// one-click challenge needs a non-empty first category and at least one other.
var ErrEmptyDataset = errors.New("captcha dataset empty")

// Category is one labelled group of source images.
type Category struct {
	Name   string
	Images [][]byte
}

// Dataset loads category images once, on first use, and keeps them for the
// life of the process.
//
// The source file is JSON (optionally gzip-compressed) shaped as
// {"keys": {"<category>": ["<base64 image>", ...]}}. Images may themselves be
// gzip-compressed. Category order is preserved and the first category holds
// the correct answers. After the first successful decompression the raw
// images are written to the cache file, which later loads prefer.
type Dataset struct {
	path      string
	cachePath string
	log       logging.Sink

	mu         sync.Mutex
	loaded     bool
	categories []Category
	err        error
}

// NewDataset returns a lazily loaded dataset. cachePath may be empty.
func NewDataset(path, cachePath string, sink logging.Sink) *Dataset {
	return &Dataset{path: path, cachePath: cachePath, log: logging.OrDiscard(sink)}
}

// NewStaticDataset wraps already-decoded categories.
func NewStaticDataset(categories []Category) *Dataset {
	return &Dataset{loaded: true, categories: categories}
}

// Categories returns the loaded categories, loading them on first call.
func (d *Dataset) Categories() ([]Category, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		d.categories, d.err = d.load()
		d.loaded = true
	}
	if d.err != nil {
		return nil, d.err
	}
	if len(d.categories) < 2 || len(d.categories[0].Images) == 0 {
		return nil, ErrEmptyDataset
	}
	return d.categories, nil
}

func (d *Dataset) load() ([]Category, error) {
	if d.cachePath != "" {
		if cats, err := readDatasetFile(d.cachePath); err == nil {
			return cats, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			d.log.Log("captcha cache unreadable, falling back to source: "+err.Error(), logging.LevelWarn)
		}
	}

	if d.path == "" {
		return nil, ErrEmptyDataset
	}
	cats, err := readDatasetFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrEmptyDataset
		}
		return nil, fmt.Errorf("load captcha dataset: %w", err)
	}

	if d.cachePath != "" {
		if err := writeDatasetFile(d.cachePath, cats); err != nil {
			d.log.Log("captcha cache write failed: "+err.Error(), logging.LevelWarn)
		}
	}
	return cats, nil
}

func readDatasetFile(path string) ([]Category, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, _ := br.Peek(2); isGzip(magic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}

	cats, err := decodeCategories(r)
	if err != nil {
		return nil, err
	}
	for i := range cats {
		for j, img := range cats[i].Images {
			raw, err := gunzipIfNeeded(img)
			if err != nil {
				return nil, fmt.Errorf("category %q image %d: %w", cats[i].Name, j, err)
			}
			cats[i].Images[j] = raw
		}
	}
	return cats, nil
}

// decodeCategories walks the JSON tokens so that category order survives.
func decodeCategories(r io.Reader) ([]Category, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var cats []Category
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if name, _ := tok.(string); name != "keys" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}

		if err := expectDelim(dec, '{'); err != nil {
			return nil, err
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			name, ok := tok.(string)
			if !ok {
				return nil, errors.New("category name must be a string")
			}
			var images [][]byte
			if err := dec.Decode(&images); err != nil {
				return nil, fmt.Errorf("category %q: %w", name, err)
			}
			cats = append(cats, Category{Name: name, Images: images})
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
	}
	return cats, expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q in dataset", want)
	}
	return nil
}

func writeDatasetFile(path string, cats []Category) error {
	var buf bytes.Buffer
	buf.WriteString(`{"keys":{`)
	for i, c := range cats {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(c.Name)
		if err != nil {
			return err
		}
		images, err := json.Marshal(c.Images)
		if err != nil {
			return err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(images)
	}
	buf.WriteString(`}}`)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".captcha-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func isGzip(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b
}

func gunzipIfNeeded(b []byte) ([]byte, error) {
	if !isGzip(b) {
		return b, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
