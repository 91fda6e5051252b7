/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReferenceNumber builds the human-readable deposit reference
// <METHOD>-<unix millis>-<6 random uppercase alphanumerics>.
func NewReferenceNumber(method string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", referencePrefix(method), now.UnixMilli(), randomSuffix(6))
}

func referencePrefix(method string) string {
	method = strings.TrimSpace(method)
	if method == "" {
		return "DEP"
	}

	var b strings.Builder
	for _, r := range strings.ToUpper(method) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func randomSuffix(n int) string {
	raw := uuid.New()
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = referenceAlphabet[int(raw[i])%len(referenceAlphabet)]
	}
	return string(out)
}
