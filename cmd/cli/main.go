package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "app":
		handleApp(args)
	case "user":
		handleUser(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: communityhub auth <login|logout|who>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

func handleApp(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: communityhub app <submit|list|show|review|interview|queue|templates>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "submit":
		submitApplication(args[1:])
	case "list":
		listApplications(args[1:])
	case "show":
		showApplication(args[1:])
	case "review":
		reviewApplication(args[1:])
	case "interview":
		recordInterview(args[1:])
	case "queue":
		listQueue(args[1:])
	case "templates":
		listTemplates(args[1:])
	default:
		fmt.Printf("unknown app command: %s\n", subCmd)
	}
}

func handleUser(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: communityhub user <show|set-role|set-department|ban|unban|delete|sync>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "show":
		showUser(args[1:])
	case "set-role":
		setRole(args[1:])
	case "set-department":
		setDepartment(args[1:])
	case "ban":
		setBanned(args[1:], true)
	case "unban":
		setBanned(args[1:], false)
	case "delete":
		deleteUser(args[1:])
	case "sync":
		syncRole(args[1:])
	default:
		fmt.Printf("unknown user command: %s\n", subCmd)
	}
}

// Auth commands
func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	externalID := fs.String("external-id", "", "platform identity")
	username := fs.String("username", "", "username")

	fs.Parse(args)

	if *externalID == "" || *username == "" {
		fmt.Println("Error: external-id and username are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"externalId": *externalID, "username": *username}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/login", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s (%v)\n", *username, result["role"])
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logoutUser() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	fmt.Printf("✓ Logged in (token: %s...)\n", token[:20])
}

// Application commands
func submitApplication(args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	templateID := fs.Int64("template", 0, "application template ID")
	responses := fs.String("responses", "", "answers as key=value pairs, comma separated")

	fs.Parse(args)

	if *templateID == 0 {
		fmt.Println("Error: template is required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]interface{}{
		"templateId": *templateID,
		"responses":  parsePairs(*responses),
	}
	result, status, err := doJSON("POST", "/applications", payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 201 {
		fmt.Printf("✓ Application %v submitted (%v)\n", result["id"], result["department"])
	} else {
		fmt.Printf("✗ Submission failed: %v\n", result["error"])
	}
}

func listApplications(args []string) {
	_ = args
	req, _ := http.NewRequest("GET", getAPIURL()+"/applications", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var apps []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&apps)
	printApplications(apps)
}

func showApplication(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: communityhub app show <application-id>")
		return
	}

	req, _ := http.NewRequest("GET", getAPIURL()+"/applications/"+args[0], nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var app map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&app)
	if resp.StatusCode != 200 {
		fmt.Printf("✗ %v\n", app["error"])
		return
	}

	fmt.Printf("Application %v\n", app["id"])
	fmt.Printf("  Department:  %v\n", app["department"])
	fmt.Printf("  Status:      %v\n", app["status"])
	if iv, ok := app["interviewStatus"].(string); ok && iv != "" {
		fmt.Printf("  Interview:   %v\n", iv)
	}
	fmt.Printf("  Denials:     %v\n", app["denialCount"])
	if cd, ok := app["cooldownUntil"].(string); ok && cd != "" {
		fmt.Printf("  Cooldown:    %v\n", cd)
	}
	if notes, ok := app["notes"].([]interface{}); ok && len(notes) > 0 {
		fmt.Println("  Notes:")
		for _, n := range notes {
			note := n.(map[string]interface{})
			fmt.Printf("    [%v] %v\n", note["authorId"], note["body"])
		}
	}
}

func reviewApplication(args []string) {
	fs := flag.NewFlagSet("review", flag.ExitOnError)
	id := fs.String("id", "", "application ID")
	action := fs.String("action", "", "accept or deny")
	note := fs.String("note", "", "reviewer note (optional)")

	fs.Parse(args)

	if *id == "" || *action == "" {
		fmt.Println("Error: id and action are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"action": *action, "note": *note}
	result, status, err := doJSON("POST", "/applications/"+*id+"/review", payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 200 {
		fmt.Printf("✓ Application %v: %v\n", result["id"], result["status"])
	} else {
		fmt.Printf("✗ Review failed: %v\n", result["error"])
	}
}

func recordInterview(args []string) {
	fs := flag.NewFlagSet("interview", flag.ExitOnError)
	id := fs.String("id", "", "application ID")
	result := fs.String("result", "", "completed or failed")
	note := fs.String("note", "", "interviewer note (optional)")

	fs.Parse(args)

	if *id == "" || *result == "" {
		fmt.Println("Error: id and result are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"result": *result, "note": *note}
	body, status, err := doJSON("POST", "/applications/"+*id+"/interview", payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 200 {
		fmt.Printf("✓ Application %v: %v / %v\n", body["id"], body["status"], body["interviewStatus"])
	} else {
		fmt.Printf("✗ Interview recording failed: %v\n", body["error"])
	}
}

func listQueue(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: communityhub app queue <department>")
		return
	}

	req, _ := http.NewRequest("GET", getAPIURL()+"/departments/"+args[0]+"/queue", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var apps []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&apps)
	printApplications(apps)
}

func listTemplates(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: communityhub app templates <department>")
		return
	}

	req, _ := http.NewRequest("GET", getAPIURL()+"/departments/"+args[0]+"/templates", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var templates []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&templates)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDEPARTMENT\tTITLE")
	for _, t := range templates {
		fmt.Fprintf(w, "%v\t%v\t%v\n", t["id"], t["department"], t["title"])
	}
	w.Flush()
}

// User commands
func showUser(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: communityhub user show <user-id>")
		return
	}

	req, _ := http.NewRequest("GET", getAPIURL()+"/users/"+args[0], nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var user map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&user)
	if resp.StatusCode != 200 {
		fmt.Printf("✗ %v\n", user["error"])
		return
	}

	fmt.Printf("User %v (%v)\n", user["id"], user["username"])
	fmt.Printf("  Role:       %v\n", user["role"])
	if dept, ok := user["department"].(string); ok && dept != "" {
		fmt.Printf("  Department: %v\n", dept)
	}
	if banned, _ := user["isBanned"].(bool); banned {
		fmt.Println("  BANNED")
	}
}

func setRole(args []string) {
	fs := flag.NewFlagSet("set-role", flag.ExitOnError)
	id := fs.String("id", "", "target user ID")
	role := fs.String("role", "", "role to assign")

	fs.Parse(args)

	if *id == "" || *role == "" {
		fmt.Println("Error: id and role are required")
		fs.PrintDefaults()
		return
	}

	result, status, err := doJSON("POST", "/users/"+*id+"/role", map[string]string{"role": *role})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 200 {
		fmt.Printf("✓ User %v role: %v\n", result["id"], result["role"])
	} else {
		fmt.Printf("✗ Role change failed: %v\n", result["error"])
	}
}

func setDepartment(args []string) {
	fs := flag.NewFlagSet("set-department", flag.ExitOnError)
	id := fs.String("id", "", "target user ID")
	department := fs.String("department", "", "department to assign")

	fs.Parse(args)

	if *id == "" || *department == "" {
		fmt.Println("Error: id and department are required")
		fs.PrintDefaults()
		return
	}

	result, status, err := doJSON("POST", "/users/"+*id+"/department", map[string]string{"department": *department})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 200 {
		fmt.Printf("✓ User %v department: %v\n", result["id"], result["department"])
	} else {
		fmt.Printf("✗ Department change failed: %v\n", result["error"])
	}
}

func setBanned(args []string, banned bool) {
	if len(args) < 1 {
		fmt.Println("Usage: communityhub user ban|unban <user-id>")
		return
	}

	result, status, err := doJSON("POST", "/users/"+args[0]+"/ban", map[string]bool{"banned": banned})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 200 {
		verb := "unbanned"
		if banned {
			verb = "banned"
		}
		fmt.Printf("✓ User %v %s\n", result["id"], verb)
	} else {
		fmt.Printf("✗ Ban change failed: %v\n", result["error"])
	}
}

func deleteUser(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: communityhub user delete <user-id>")
		return
	}

	req, _ := http.NewRequest("DELETE", getAPIURL()+"/users/"+args[0], nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == 204 {
		fmt.Printf("✓ User %s deleted\n", args[0])
	} else {
		var result map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&result)
		fmt.Printf("✗ Deletion failed: %v\n", result["error"])
	}
}

func syncRole(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: communityhub user sync <user-id>")
		return
	}

	result, status, err := doJSON("POST", "/users/"+args[0]+"/sync-role", map[string]string{})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 200 {
		if applied, _ := result["applied"].(bool); applied {
			fmt.Printf("✓ User %v role updated to %v\n", result["userId"], result["role"])
		} else {
			fmt.Printf("✓ User %v role unchanged (%v)\n", result["userId"], result["role"])
		}
	} else {
		fmt.Printf("✗ Sync failed: %v\n", result["error"])
	}
}

// Helper functions
func doJSON(method, path string, payload interface{}) (map[string]interface{}, int, error) {
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest(method, getAPIURL()+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result, resp.StatusCode, nil
}

func printApplications(apps []map[string]interface{}) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDEPARTMENT\tSTATUS\tINTERVIEW\tDENIALS")
	for _, a := range apps {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n",
			a["id"], a["department"], a["status"], a["interviewStatus"], a["denialCount"])
	}
	w.Flush()
}

func parsePairs(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if ok {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return out
}

func getAPIURL() string {
	if url := os.Getenv("COMMUNITYHUB_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.communityhub/token"
}

func saveToken(token string) error {
	home, _ := os.UserHomeDir()
	os.MkdirAll(home+"/.communityhub", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`CommunityHub CLI

Usage:
  communityhub <command> [options]

Commands:
  auth  Authentication (login, logout, who)
  app   Application operations (submit, list, show, review, interview, queue, templates)
  user  User operations (show, set-role, set-department, ban, unban, delete, sync)
  help  Show this help message

Environment Variables:
  COMMUNITYHUB_API    API endpoint (default: http://localhost:8080/api)

Examples:
  communityhub auth login -external-id 1234 -username chris
  communityhub app submit -template 3 -responses "age=21,experience=2 years"
  communityhub app queue CIV
  communityhub user set-role -id 42 -role MODERATOR
`)
}
