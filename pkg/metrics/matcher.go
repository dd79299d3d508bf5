/*
 * Copyright 2025 Carver Automation Corporation.
 *
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

package metrics

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/wardflux/wardflux/pkg/models"
)

var ErrInvalidMatcher = errors.New("invalid label matcher")

type matcher struct {
	name string
	op   models.MatchOp
	val  string
	re   *regexp.Regexp
}

// compileMatchers validates matchers and compiles regular expressions. Regex
// matchers are anchored at both ends.
func compileMatchers(in []models.LabelMatcher) ([]matcher, error) {
	out := make([]matcher, 0, len(in))

	for _, m := range in {
		c := matcher{name: m.Name, op: m.Op, val: m.Value}

		if m.Name == "" {
			return nil, fmt.Errorf("%w: empty label name", ErrInvalidMatcher)
		}

		switch m.Op {
		case models.MatchEqual, models.MatchNotEqual:
		case models.MatchRegexp, models.MatchNotRegexp:
			re, err := regexp.Compile("^(?:" + m.Value + ")$")
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidMatcher, err)
			}

			c.re = re
		default:
			return nil, fmt.Errorf("%w: operator %q", ErrInvalidMatcher, m.Op)
		}

		out = append(out, c)
	}

	return out, nil
}

// matches reports whether a value satisfies the matcher. A missing label has
// the empty value.
func (m *matcher) matches(value string) bool {
	switch m.op {
	case models.MatchEqual:
		return value == m.val
	case models.MatchNotEqual:
		return value != m.val
	case models.MatchRegexp:
		return m.re.MatchString(value)
	case models.MatchNotRegexp:
		return !m.re.MatchString(value)
	}

	return false
}

func matchAll(matchers []matcher, name string, labels map[string]string) bool {
	for i := range matchers {
		value := labels[matchers[i].name]
		if matchers[i].name == models.MetricNameLabel {
			value = name
		}

		if !matchers[i].matches(value) {
			return false
		}
	}

	return true
}

// exactName returns the metric name when the matchers pin it with =.
func exactName(matchers []matcher) string {
	for i := range matchers {
		if matchers[i].name == models.MetricNameLabel && matchers[i].op == models.MatchEqual {
			return matchers[i].val
		}
	}

	return ""
}
