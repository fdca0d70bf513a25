//go:build linux || darwin || freebsd

/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package capacity

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DiskEstimator reports the filesystem holding Path. The quota is the size
// of the filesystem and the usage everything not available to this process.
type DiskEstimator struct {
	Path string
}

func (d DiskEstimator) Estimate(ctx context.Context) (Estimate, error) {
	if err := ctx.Err(); err != nil {
		return Estimate{}, err
	}
	path := d.Path
	if path == "" {
		path = "."
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Estimate{}, fmt.Errorf("failed to prepare data directory: %w", err)
	}
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Estimate{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	quota := uint64(st.Blocks) * bsize
	avail := uint64(st.Bavail) * bsize
	return Estimate{Quota: quota, Usage: quota - avail}, nil
}
