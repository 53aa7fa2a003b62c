package main

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var errMalformedKML = errors.New("malformed kml document")

var (
	cdataStart = []byte("<![CDATA[")
	cdataEnd   = []byte("]]>")
)

// sanitizeKML rewrites the file at path so that CDATA sections whose
// payload is itself markup are unwrapped into first-class elements.
// CDATA holding plain text is left alone. The rewritten document must
// still parse as XML; anything else is errMalformedKML.
func sanitizeKML(path string) (string, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	out, err := unwrapCDATA(doc)
	if err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), errMalformedKML)
	}
	if err := checkWellFormed(out); err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), errMalformedKML)
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// unwrapCDATA scans the document text once, tracking whether the scan
// position is inside a CDATA section. Markup payloads are spliced in
// place of their wrapper; an unterminated section is an error rather
// than a silent pass-through.
func unwrapCDATA(doc []byte) ([]byte, error) {
	var out bytes.Buffer
	rest := doc
	for {
		i := bytes.Index(rest, cdataStart)
		if i < 0 {
			out.Write(rest)
			break
		}
		out.Write(rest[:i])
		rest = rest[i+len(cdataStart):]

		j := bytes.Index(rest, cdataEnd)
		if j < 0 {
			return nil, errors.New("unterminated CDATA section")
		}
		payload := rest[:j]
		rest = rest[j+len(cdataEnd):]

		if isMarkupFragment(payload) {
			out.Write(payload)
		} else {
			out.Write(cdataStart)
			out.Write(payload)
			out.Write(cdataEnd)
		}
	}
	return out.Bytes(), nil
}

// isMarkupFragment reports whether payload is a well-formed XML
// fragment, meaning it can stand as element content without its CDATA
// wrapper.
func isMarkupFragment(payload []byte) bool {
	if !strings.HasPrefix(strings.TrimSpace(string(payload)), "<") {
		return false
	}
	var wrapped bytes.Buffer
	wrapped.WriteString("<fragment>")
	wrapped.Write(payload)
	wrapped.WriteString("</fragment>")
	return checkWellFormed(wrapped.Bytes()) == nil
}

// checkWellFormed tokenizes the whole document. encoding/xml accepts
// loose text outside any element, so a single root is enforced here.
func checkWellFormed(doc []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if roots != 1 {
				return fmt.Errorf("document has %d root elements", roots)
			}
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return errors.New("text outside root element")
			}
		}
	}
}
