package multipart

import (
	"regexp"
	"strings"
)

type disposition struct {
	name        string
	fileName    string
	contentType string
}

// dispositionParser is one attempt at reading name and filename from a
// Content-Disposition value. Attempts are tried in order until one matches.
type dispositionParser func(value string) (name, fileName string, ok bool)

var dispositionParsers = []dispositionParser{
	parseQuotedDisposition,
	parseBareDisposition,
	parseMixedDisposition,
}

var (
	quotedNameRe     = regexp.MustCompile(`(?i)(?:^|[;\s])name="([^"]*)"`)
	quotedFileNameRe = regexp.MustCompile(`(?i)(?:^|[;\s])filename="([^"]*)"`)
	bareNameRe       = regexp.MustCompile(`(?i)(?:^|[;\s])name=([^";,\s]+)`)
	bareFileNameRe   = regexp.MustCompile(`(?i)(?:^|[;\s])filename=([^";,\s]+)`)
	anyNameRe        = regexp.MustCompile(`(?i)(?:^|[;\s])name=(?:"([^"]*)"|([^;,\s]+))`)
	anyFileNameRe    = regexp.MustCompile(`(?i)(?:^|[;\s])filename=(?:"([^"]*)"|([^;,\s]+))`)
	fileNameParamRe  = regexp.MustCompile(`(?i)(?:^|[;\s])filename=`)
)

// parseQuotedDisposition handles name="a"; filename="b".
func parseQuotedDisposition(value string) (string, string, bool) {
	name := quotedNameRe.FindStringSubmatch(value)
	if name == nil {
		return "", "", false
	}
	if !fileNameParamRe.MatchString(value) {
		return name[1], "", true
	}
	fileName := quotedFileNameRe.FindStringSubmatch(value)
	if fileName == nil {
		return "", "", false
	}
	return name[1], fileName[1], true
}

// parseBareDisposition handles name=a; filename=b.
func parseBareDisposition(value string) (string, string, bool) {
	name := bareNameRe.FindStringSubmatch(value)
	if name == nil {
		return "", "", false
	}
	if !fileNameParamRe.MatchString(value) {
		return name[1], "", true
	}
	fileName := bareFileNameRe.FindStringSubmatch(value)
	if fileName == nil {
		return "", "", false
	}
	return name[1], fileName[1], true
}

// parseMixedDisposition extracts name and filename independently, each either
// quoted or bare.
func parseMixedDisposition(value string) (string, string, bool) {
	name := firstGroup(anyNameRe.FindStringSubmatch(value))
	if name == "" {
		return "", "", false
	}
	return name, firstGroup(anyFileNameRe.FindStringSubmatch(value)), true
}

func firstGroup(match []string) string {
	for _, group := range match[min(1, len(match)):] {
		if group != "" {
			return group
		}
	}
	return ""
}

// parseHeaders reads the part headers. It fails when there is no
// Content-Disposition line or no field name can be extracted from it.
func parseHeaders(header string) (disposition, bool) {
	var d disposition
	var dispositionValue string
	found := false

	for _, line := range strings.Split(header, "\n") {
		line = strings.TrimRight(line, "\r")
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "content-disposition":
			if !found {
				dispositionValue = strings.TrimSpace(value)
				found = true
			}
		case "content-type":
			d.contentType = strings.TrimSpace(value)
		}
	}
	if !found {
		return disposition{}, false
	}

	for _, parse := range dispositionParsers {
		if name, fileName, ok := parse(dispositionValue); ok && name != "" {
			d.name = name
			d.fileName = fileName
			return d, true
		}
	}
	return disposition{}, false
}
