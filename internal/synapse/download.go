// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package synapse

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/transfer"
)

// Download is the outcome of a download request.
type Download struct {
	Entity Entity
	Path   string
	DryRun bool
	Result transfer.Result
}

// Download fetches entity id into dir, named after the entity. With dryRun
// set only the metadata is fetched and Path reports the planned target.
func (c *Client) Download(ctx context.Context, id, dir string, dryRun bool, p transfer.Progress) (Download, error) {
	if err := ValidateID(id); err != nil {
		return Download{}, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Download{}, err
	}

	ent, err := c.EntityBundle(ctx, id)
	if err != nil {
		return Download{}, accessError(id, err)
	}
	d := Download{Entity: ent, Path: filepath.Join(abs, safeName(ent.Name, id)), DryRun: dryRun}
	if dryRun {
		return d, nil
	}

	url, err := c.FileHandleURL(ctx, ent.DataFileHandleID)
	if err != nil {
		c.log.Debug("file handle url failed, trying entity url", zap.Error(err))
		if url, err = c.EntityFileURL(ctx, id); err != nil {
			return d, accessError(id, err)
		}
	}
	c.log.Debug("downloading", zap.String("entity", id), zap.String("path", d.Path))

	d.Result, err = transfer.ToFile(ctx, c.dl, url, d.Path, p)
	if err != nil {
		return d, herrors.Wrap(herrors.Transport, fmt.Sprintf("Could not download %s", id), err)
	}
	return d, nil
}

func accessError(id string, err error) error {
	return herrors.Wrap(herrors.Server, fmt.Sprintf("Could not access %s", id), err)
}

// safeName strips any directory part from the entity name.
func safeName(name, fallback string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return fallback
	}
	return name
}
