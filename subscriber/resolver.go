// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package subscriber

import "context"

// Resolver turns paths into candidate publisher addresses for Subscribe
// (spec §4.4). The zero addresses / one address / multiple addresses cases
// are Subscribe's to interpret, not Resolver's: it only reports what a
// resolver's ToReadResolve answered. The production implementation dials a
// resolverserver.Server and speaks ToRead/FromRead; tests use a fake.
type Resolver interface {
	Resolve(ctx context.Context, paths []string) ([][]string, error)
}
