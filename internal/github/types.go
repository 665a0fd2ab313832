package github

// RepoInfo is the subset of GET /repos/{owner}/{repo} shown on the stats page.
type RepoInfo struct {
	Name            string   `json:"name"`
	FullName        string   `json:"full_name"`
	Description     string   `json:"description"`
	StargazersCount int      `json:"stargazers_count"`
	ForksCount      int      `json:"forks_count"`
	WatchersCount   int      `json:"watchers_count"`
	OpenIssuesCount int      `json:"open_issues_count"`
	Topics          []string `json:"topics"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
	PushedAt        string   `json:"pushed_at"`
	DefaultBranch   string   `json:"default_branch"`
	Size            int      `json:"size"`
	Language        string   `json:"language"`
	HTMLURL         string   `json:"html_url"`
}

type CommitAuthor struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

type CommitDetail struct {
	Message string       `json:"message"`
	Author  CommitAuthor `json:"author"`
}

// Account is a GitHub user reference; commits by unlinked emails have none.
type Account struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

type Commit struct {
	SHA     string       `json:"sha"`
	Commit  CommitDetail `json:"commit"`
	Author  *Account     `json:"author"`
	HTMLURL string       `json:"html_url"`
}

type Contributor struct {
	Login         string `json:"login"`
	AvatarURL     string `json:"avatar_url"`
	Contributions int    `json:"contributions"`
	HTMLURL       string `json:"html_url"`
}

type Release struct {
	ID          int64  `json:"id"`
	TagName     string `json:"tag_name"`
	Name        string `json:"name"`
	PublishedAt string `json:"published_at"`
	HTMLURL     string `json:"html_url"`
	Prerelease  bool   `json:"prerelease"`
	Draft       bool   `json:"draft"`
}

type Branch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
}

// Languages maps language name to bytes of code.
type Languages map[string]int64

// Actions, also used as cache keys.
const (
	ActionRepoInfo     = "repo-info"
	ActionCommits      = "commits"
	ActionContributors = "contributors"
	ActionReleases     = "releases"
	ActionBranches     = "branches"
	ActionLanguages    = "languages"
)

// Actions lists every supported action in display order.
var Actions = []string{
	ActionRepoInfo,
	ActionCommits,
	ActionContributors,
	ActionReleases,
	ActionBranches,
	ActionLanguages,
}

// ValidAction reports whether action is one of Actions.
func ValidAction(action string) bool {
	for _, a := range Actions {
		if a == action {
			return true
		}
	}
	return false
}

// newValue returns a pointer to the zero value decoded for action.
func newValue(action string) any {
	switch action {
	case ActionRepoInfo:
		return new(RepoInfo)
	case ActionCommits:
		return new([]Commit)
	case ActionContributors:
		return new([]Contributor)
	case ActionReleases:
		return new([]Release)
	case ActionBranches:
		return new([]Branch)
	case ActionLanguages:
		return new(Languages)
	default:
		return nil
	}
}

// path returns the REST path for action relative to the API root.
func path(repo, action string) string {
	base := "/repos/" + repo
	switch action {
	case ActionRepoInfo:
		return base
	case ActionCommits:
		return base + "/commits?per_page=30"
	case ActionContributors:
		return base + "/contributors?per_page=30"
	case ActionReleases:
		return base + "/releases?per_page=10"
	case ActionBranches:
		return base + "/branches?per_page=100"
	case ActionLanguages:
		return base + "/languages"
	default:
		return ""
	}
}
