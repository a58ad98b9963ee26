package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"quizbot-service/internal/domain"
)

// BankLoader reads question banks from JSON or YAML files. Relative refs are
// resolved against dir.
type BankLoader struct {
	dir string
}

func NewBankLoader(dir string) *BankLoader {
	return &BankLoader{dir: dir}
}

func (l *BankLoader) LoadBank(_ context.Context, ref string) ([]domain.Question, error) {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.dir, path)
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBankNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read bank: %w", err)
	}

	var questions []domain.Question
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &questions)
	case ".json":
		err = json.Unmarshal(raw, &questions)
	default:
		return nil, fmt.Errorf("bank %s: unsupported format", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse bank %s: %w", path, err)
	}
	return questions, nil
}
