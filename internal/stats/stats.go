// Package stats defines the persisted per-repository statistics record.
package stats

// RepoStats is the statistics record for one group repository. Every field
// except GroupNumber and GroupSize is nil when the repository is inaccessible.
type RepoStats struct {
	GroupNumber int `json:"group_number"`
	GroupSize   int `json:"group_size"`

	NumContributors             *int     `json:"num_contributors"`
	NumPRs                      *int     `json:"num_prs"`
	NumCommitsToMain            *int     `json:"num_commits_to_main"`
	AverageCommitLengthToMain   *float64 `json:"average_commit_length_to_main"`
	LatestCommit                *string  `json:"latest_commit"`
	AverageCommitLength         *float64 `json:"average_commit_length"`
	ContributionsPerContributor []int    `json:"contributions_per_contributor"`
	TotalCommits                *int     `json:"total_commits"`
	ActivityMatrix              [][]int  `json:"activity_matrix"`

	NumDockerFiles      *int     `json:"num_docker_files"`
	NumPythonFiles      *int     `json:"num_python_files"`
	NumWorkflowFiles    *int     `json:"num_workflow_files"`
	HasRequirementsFile *bool    `json:"has_requirements_file"`
	HasCloudbuild       *bool    `json:"has_cloudbuild"`
	UsingDVC            *bool    `json:"using_dvc"`
	RepoSize            *float64 `json:"repo_size"`
	ReadmeLength        *int     `json:"readme_length"`
	ActionsPassing      *bool    `json:"actions_passing"`

	// NumWarnings may be nil on an accessible record when the report could not be checked.
	NumWarnings *int `json:"num_warnings"`
}

// Inaccessible returns the record for a repository that could not be reached.
func Inaccessible(groupNumber, groupSize int) RepoStats {
	return RepoStats{GroupNumber: groupNumber, GroupSize: groupSize}
}

// Accessible reports whether the derived fields are populated.
func (s RepoStats) Accessible() bool {
	return s.NumContributors != nil
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
