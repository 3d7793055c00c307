package validator

// Validate runs the file, code and Dockerfile policies in order and
// returns the first violation found, per spec.md §4.3: any violation puts
// the submission into invalid with that violation's message.
func Validate(dir string) (*Violation, error) {
	if v, err := FilePolicy(dir); err != nil || v != nil {
		return v, err
	}
	if v, err := CodePolicy(dir); err != nil || v != nil {
		return v, err
	}
	if v, err := DockerfilePolicy(dir); err != nil || v != nil {
		return v, err
	}
	return nil, nil
}
