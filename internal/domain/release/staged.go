package release

import (
	"time"

	"github.com/google/uuid"
)

// NewStagedUpload creates a staged upload record with freshly generated
// session id and cipher password.
func NewStagedUpload(version string, platform Platform, arch Arch) *StagedUpload {
	return &StagedUpload{
		ID:             uuid.NewString(),
		SaveString:     uuid.NewString(),
		Version:        version,
		Platform:       platform,
		Arch:           arch,
		Date:           time.Now().UTC(),
		CipherPassword: uuid.NewString(),
	}
}
