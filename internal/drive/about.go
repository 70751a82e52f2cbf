package drive

import (
	"context"
	"fmt"

	drive "google.golang.org/api/drive/v3"

	"github.com/teemow/gdriveapp/internal/instrumentation"
)

const aboutFields = "user(displayName,emailAddress),storageQuota(limit,usage,usageInDrive,usageInDriveTrash)"

// AccountInfo describes the authorized user and their storage quota.
type AccountInfo struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`

	// QuotaLimit is zero for accounts with unlimited storage.
	QuotaLimit        int64 `json:"quotaLimit,omitempty"`
	QuotaUsage        int64 `json:"quotaUsage"`
	UsageInDrive      int64 `json:"usageInDrive"`
	UsageInDriveTrash int64 `json:"usageInDriveTrash"`
}

// About returns the authorized account and its storage usage.
func (c *Client) About(ctx context.Context) (*AccountInfo, error) {
	var about *drive.About
	err := c.call(ctx, instrumentation.OperationAbout, true, func(ctx context.Context) error {
		var err error
		about, err = c.service.About.Get().Context(ctx).Fields(aboutFields).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account information: %w", err)
	}

	info := &AccountInfo{}
	if about.User != nil {
		info.DisplayName = about.User.DisplayName
		info.EmailAddress = about.User.EmailAddress
	}
	if q := about.StorageQuota; q != nil {
		info.QuotaLimit = q.Limit
		info.QuotaUsage = q.Usage
		info.UsageInDrive = q.UsageInDrive
		info.UsageInDriveTrash = q.UsageInDriveTrash
	}
	return info, nil
}
