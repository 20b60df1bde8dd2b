// Package storage は帳票の成果物を保存するストレージレイヤーを提供します。
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local はローカルファイルシステム上の成果物ストアです。
// ジョブごとに base/<jobID>/ のディレクトリを持ちます。
type Local struct {
	base string
}

// NewLocal はローカルストアを作成します。base が無ければ作成します。
func NewLocal(base string) (*Local, error) {
	if base == "" {
		return nil, fmt.Errorf("storage base dir is required")
	}
	if err := os.MkdirAll(base, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &Local{base: base}, nil
}

// JobDir はジョブの作業ディレクトリを返します（必要なら作成します）。
func (l *Local) JobDir(jobID string) (string, error) {
	if err := validateJobID(jobID); err != nil {
		return "", err
	}
	dir := filepath.Join(l.base, jobID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create job dir: %w", err)
	}
	return dir, nil
}

// WriteJSON はジョブディレクトリに JSON ファイルを書き込みます。
func (l *Local) WriteJSON(jobID, name string, v any) error {
	dir, err := l.JobDir(jobID)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ReadJSON はジョブディレクトリから JSON ファイルを読み込みます。
func (l *Local) ReadJSON(jobID, name string, v any) error {
	if err := validateJobID(jobID); err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(l.base, jobID, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// Path はジョブディレクトリ内のファイルの絶対パスを返します。
func (l *Local) Path(jobID, name string) (string, error) {
	if err := validateJobID(jobID); err != nil {
		return "", err
	}
	return filepath.Join(l.base, jobID, name), nil
}

// Open はジョブディレクトリ内のファイルを開きます。
func (l *Local) Open(jobID, name string) (*os.File, error) {
	path, err := l.Path(jobID, name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove はジョブディレクトリごと削除します。
func (l *Local) Remove(jobID string) error {
	if err := validateJobID(jobID); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(l.base, jobID))
}

// validateJobID はパストラバーサルに使える ID を拒否します。
func validateJobID(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}
	if strings.ContainsAny(jobID, "/\\") || strings.Contains(jobID, "..") {
		return fmt.Errorf("invalid jobID: %s", jobID)
	}
	return nil
}
