/*
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

// Package gocpp drives the preprocessor engine over a file and prints the
// result as preprocessed C text.
package gocpp

import (
	"bufio"
	"fmt"
	"io"

	"github.com/fwessels/gocpp/internal/preprocessor"
)

// DumpMode selects what is written besides, or instead of, the tokens.
type DumpMode uint8

const (
	DumpNone        DumpMode = iota
	DumpMacros               // -dM: only the final macro definitions
	DumpDefinitions          // -dD: the output with #define and #undef lines kept
)

// Config configures Preprocess.
type Config struct {
	preprocessor.Options

	NoLineMarkers bool // -P
	Dump          DumpMode
}

// Preprocess reads the file called name, or src when it is not nil, and
// writes the preprocessed text to w. The returned Reader carries the error
// counts and exit status of the run.
func Preprocess(w io.Writer, name string, src []byte, cfg Config) (*preprocessor.Reader, error) {
	bw := bufio.NewWriter(w)
	p := newPrinter(bw, cfg)
	r := preprocessor.NewReader(cfg.Options, p)

	var err error
	if src != nil {
		err = r.StartReadSource(name, src)
	} else {
		err = r.StartRead(name)
	}
	if err != nil {
		return r, err
	}

	if cfg.Dump == DumpMacros {
		for r.GetToken().Type != preprocessor.EOF {
		}
		r.Finish()
		p.dumpMacros(r)
	} else {
		p.scan(r)
		r.Finish()
	}

	if err := bw.Flush(); err != nil {
		return r, fmt.Errorf("writing output: %w", err)
	}
	return r, nil
}
