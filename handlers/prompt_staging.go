package handlers

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// stagedPrompt is the initial prompt project.create stages to disk for
// opencode.sendUserPrompt to pick up later, once the project's
// containers and session are ready. Staging rather than carrying the
// prompt through every payload in the chain keeps the later jobs'
// payloads small and lets the prompt survive a queue restart between
// project.create and opencode.sendUserPrompt.
type stagedPrompt struct {
	Text   string            `json:"text"`
	Model  string            `json:"model,omitempty"`
	Images []ImageAttachment `json:"images,omitempty"`
}

func promptStagingPath(dir string) string {
	return filepath.Join(dir, ".doceq", "prompt.json")
}

// writePromptStaging persists p under dir so a later job in the same
// project's pipeline can load it.
func writePromptStaging(dir string, p stagedPrompt) error {
	path := promptStagingPath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// readPromptStaging loads a previously staged prompt. It returns
// (nil, nil) if no staging file exists; the staging file is not
// deleted after a send, and opencode.sendUserPrompt treats a missing
// file as an error.
func readPromptStaging(dir string) (*stagedPrompt, error) {
	data, err := os.ReadFile(promptStagingPath(dir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p stagedPrompt
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
