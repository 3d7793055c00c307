package validator

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// forbiddenInstructions mirrors dockerfile_validator.py's FORBIDDEN_INSTRUCTIONS.
var forbiddenInstructions = []*regexp.Regexp{
	regexp.MustCompile(`(?i)--privileged`),
	regexp.MustCompile(`(?i)--cap-add`),
	regexp.MustCompile(`(?i)--security-opt.*unconfined`),
	regexp.MustCompile(`(?i)host\.docker\.internal`),
	regexp.MustCompile(`(?i)docker\.sock`),
	regexp.MustCompile(`(?i)SYS_ADMIN`),
	regexp.MustCompile(`(?i)SYS_PTRACE`),
	regexp.MustCompile(`(?i)NET_ADMIN`),
	regexp.MustCompile(`(?i)--net=host`),
	regexp.MustCompile(`(?i)--network=host`),
	regexp.MustCompile(`(?i)--pid=host`),
	regexp.MustCompile(`(?i)--ipc=host`),
}

// allowedBaseImages mirrors dockerfile_validator.py's ALLOWED_BASE_IMAGES,
// generalized from Python-only to the family patterns a multi-language
// submission's container may legitimately start from.
var allowedBaseImages = []*regexp.Regexp{
	regexp.MustCompile(`^python:[0-9]+\.[0-9]+(-slim|-alpine)?$`),
	regexp.MustCompile(`^golang:[0-9]+\.[0-9]+(-alpine)?$`),
	regexp.MustCompile(`^debian:(bookworm|bullseye)(-slim)?$`),
	regexp.MustCompile(`^alpine:[0-9]+\.[0-9]+$`),
	regexp.MustCompile(`^ubuntu:[0-9]+\.[0-9]+$`),
}

// DockerfilePolicy checks §4.3.3: pinned base-image allowlist, forbidden
// privilege-escalation flags, mandatory non-root USER.
func DockerfilePolicy(dir string) (*Violation, error) {
	path := filepath.Join(dir, "Dockerfile")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Violation{Kind: "missing_required_file", Message: "missing required file: Dockerfile"}, nil
	}
	if err != nil {
		return nil, err
	}
	content := string(raw)
	lines := strings.Split(content, "\n")

	for _, re := range forbiddenInstructions {
		if re.MatchString(content) {
			return &Violation{Kind: "forbidden_instruction", Message: "found forbidden pattern: " + re.String()}, nil
		}
	}

	if v := checkBaseImage(lines); v != nil {
		return v, nil
	}
	if v := checkUserDirective(lines); v != nil {
		return v, nil
	}
	return nil, nil
}

func checkBaseImage(lines []string) *Violation {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToUpper(line), "FROM ") {
			continue
		}
		fields := strings.Fields(line[5:])
		if len(fields) == 0 {
			continue
		}
		image := fields[0]
		for _, re := range allowedBaseImages {
			if re.MatchString(image) {
				return nil
			}
		}
		return &Violation{Kind: "disallowed_base_image", Message: "base image not in allowlist: " + image}
	}
	return &Violation{Kind: "missing_from", Message: "no FROM instruction found"}
}

func checkUserDirective(lines []string) *Violation {
	for _, line := range lines {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), "USER ") {
			return nil
		}
	}
	return &Violation{Kind: "missing_user", Message: "no USER directive, container may run as root"}
}
