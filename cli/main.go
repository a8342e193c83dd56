package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styling
var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#30d158")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)

	dangerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff453a"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd60a"))
)

// Model defines the application state
type Model struct {
	mainMenu      list.Model
	inventoryView table.Model
	matchList     list.Model
	textInput     textinput.Model
	spinner       spinner.Model
	client        *ApiClient
	currentView   string
	matches       []MatchResult
	receipt       *Receipt
	status        string
	error         string
}

// item represents a list item
type item struct {
	title, desc string
}

// FilterValue implements list.Item interface
func (i item) FilterValue() string { return i.title }

// Title implements list.Item interface
func (i item) Title() string { return i.title }

// Description implements list.Item interface
func (i item) Description() string { return i.desc }

// Initialize the model
func initialModel() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	items := []list.Item{
		item{title: "Inventory", desc: "View your fridge contents and freshness"},
		item{title: "What can I cook?", desc: "Ranked recipe matches for your stock"},
		item{title: "Add Purchase", desc: "Record a new stock lot"},
		item{title: "Exit", desc: "Exit the application"},
	}
	mainMenu := list.New(items, list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "FridgeChef CLI"

	columns := []table.Column{
		{Title: "Ingredient", Width: 16},
		{Title: "Remaining", Width: 12},
		{Title: "Unit", Width: 6},
		{Title: "Days Left", Width: 10},
		{Title: "Freshness", Width: 10},
		{Title: "Lot", Width: 10},
	}
	inventoryView := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	matchList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	matchList.Title = "Recipe Matches"

	ti := textinput.New()
	ti.Placeholder = "ingredient,quantity,unit,price"
	ti.CharLimit = 120
	ti.Width = 40

	return Model{
		mainMenu:      mainMenu,
		inventoryView: inventoryView,
		matchList:     matchList,
		textInput:     ti,
		spinner:       s,
		client:        NewApiClient(),
		currentView:   "main",
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.EnterAltScreen)
}

// Update handles UI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.currentView == "main" {
				return m, tea.Quit
			}
		case "enter":
			switch m.currentView {
			case "main":
				if selected, ok := m.mainMenu.SelectedItem().(item); ok {
					switch selected.title {
					case "Exit":
						return m, tea.Quit
					case "Inventory":
						m.currentView = "inventory"
						m.error = ""
						return m, fetchInventory(m.client)
					case "What can I cook?":
						m.currentView = "matches"
						m.error = ""
						return m, fetchMatches(m.client)
					case "Add Purchase":
						m.currentView = "add_lot"
						m.error = ""
						m.textInput.SetValue("")
						m.textInput.Focus()
					}
				}
			case "add_lot":
				return m, addLot(m.client, m.textInput.Value())
			case "receipt":
				m.currentView = "matches"
				return m, fetchMatches(m.client)
			}
		case "esc":
			if m.currentView == "receipt" {
				m.currentView = "matches"
				return m, fetchMatches(m.client)
			}
			if m.currentView != "main" {
				m.currentView = "main"
				m.error = ""
				m.status = ""
			}
		case "r":
			switch m.currentView {
			case "inventory":
				return m, fetchInventory(m.client)
			case "matches":
				return m, fetchMatches(m.client)
			}
		case "c":
			if m.currentView == "matches" {
				if selected, ok := m.matchList.SelectedItem().(matchItem); ok {
					return m, cook(m.client, selected.recipeID)
				}
			}
		case "d":
			if m.currentView == "inventory" {
				row := m.inventoryView.SelectedRow()
				if len(row) >= 6 && row[5] != "" {
					return m, removeLot(m.client, row[5])
				}
			}
		}
	case inventoryMsg:
		m.inventoryView.SetRows(inventoryRows(msg.snapshot))
		m.error = ""
		return m, nil
	case matchesMsg:
		m.matches = msg.matches
		m.matchList.SetItems(convertMatchesToItems(msg.matches))
		m.error = ""
		return m, nil
	case cookedMsg:
		m.receipt = &msg.receipt
		m.currentView = "receipt"
		m.error = ""
		return m, nil
	case lotAddedMsg:
		m.status = fmt.Sprintf("Recorded %g %s of %s", msg.lot.QuantityTotal, msg.lot.Unit, msg.lot.IngredientID)
		m.currentView = "main"
		m.error = ""
		return m, nil
	case lotRemovedMsg:
		return m, fetchInventory(m.client)
	case errorMsg:
		m.error = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	switch m.currentView {
	case "main":
		m.mainMenu, cmd = m.mainMenu.Update(msg)
	case "inventory":
		m.inventoryView, cmd = m.inventoryView.Update(msg)
	case "matches":
		m.matchList, cmd = m.matchList.Update(msg)
	case "add_lot":
		m.textInput, cmd = m.textInput.Update(msg)
	}

	return m, cmd
}

// View renders the UI
func (m Model) View() string {
	switch m.currentView {
	case "main":
		view := m.mainMenu.View()
		if m.status != "" {
			view += "\n" + successStyle.Render(m.status)
		}
		return docStyle.Render(view)
	case "inventory":
		help := "\nPress 'd' to discard the selected lot, 'r' to refresh, 'esc' to go back\n"
		if m.error != "" {
			help += errorStyle.Render(m.error) + "\n"
		}
		return docStyle.Render(titleStyle.Render("Inventory") + "\n\n" + m.inventoryView.View() + help)
	case "matches":
		help := "\nPress 'c' to cook the selected recipe, 'r' to refresh, 'esc' to go back\n"
		if m.error != "" {
			help += errorStyle.Render(m.error) + "\n"
		}
		return docStyle.Render(titleStyle.Render("What can I cook?") + "\n\n" + m.matchList.View() + help)
	case "add_lot":
		help := "\nFormat: <ingredient>,<quantity>,<unit>[,<price per unit>]\nPress 'enter' to record, 'esc' to cancel\n"
		if m.error != "" {
			help += errorStyle.Render(m.error) + "\n"
		}
		return docStyle.Render(titleStyle.Render("Add Purchase") + "\n\n" + m.textInput.View() + help)
	case "receipt":
		if m.receipt == nil {
			return docStyle.Render("Loading...")
		}
		return docStyle.Render(receiptView(*m.receipt))
	default:
		return "Loading..."
	}
}

// Custom message types for the tea.Model
type inventoryMsg struct {
	snapshot InventorySnapshot
}

type matchesMsg struct {
	matches []MatchResult
}

type cookedMsg struct {
	receipt Receipt
}

type lotAddedMsg struct {
	lot SnapshotLot
}

type lotRemovedMsg struct{}

type errorMsg struct {
	err string
}

// matchItem represents a recipe match in the list
type matchItem struct {
	recipeID string
	title    string
	desc     string
}

func (i matchItem) Title() string       { return i.title }
func (i matchItem) Description() string { return i.desc }
func (i matchItem) FilterValue() string { return i.title }

// fetchInventory retrieves the inventory snapshot from the API
func fetchInventory(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		snap, err := client.GetInventory()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching inventory: %v", err)}
		}
		return inventoryMsg{snapshot: *snap}
	}
}

// fetchMatches retrieves ranked recipe matches from the API
func fetchMatches(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		matches, err := client.GetMatches(1)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching matches: %v", err)}
		}
		return matchesMsg{matches: matches}
	}
}

// cook commits a cook action for the selected recipe
func cook(client *ApiClient, recipeID string) tea.Cmd {
	return func() tea.Msg {
		key := fmt.Sprintf("cli-%s-%d", recipeID, time.Now().UnixNano())
		receipt, err := client.Cook(recipeID, 1, key)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Could not cook %s: %v", recipeID, err)}
		}
		return cookedMsg{receipt: *receipt}
	}
}

// addLot parses the input line and records a new stock lot
func addLot(client *ApiClient, input string) tea.Cmd {
	return func() tea.Msg {
		parts := strings.Split(input, ",")
		if len(parts) < 3 {
			return errorMsg{err: "Format: <ingredient>,<quantity>,<unit>[,<price>]"}
		}

		quantity, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || quantity <= 0 {
			return errorMsg{err: "Quantity must be a positive number"}
		}

		req := AddLotRequest{
			IngredientID: strings.TrimSpace(parts[0]),
			Quantity:     quantity,
			Unit:         strings.TrimSpace(parts[2]),
			Currency:     "EUR",
		}
		if len(parts) >= 4 {
			price, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
			if err != nil || price < 0 {
				return errorMsg{err: "Price must be a non-negative number"}
			}
			req.UnitPrice = price
		}

		lot, err := client.AddLot(req)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error recording purchase: %v", err)}
		}
		return lotAddedMsg{lot: *lot}
	}
}

// removeLot discards a stock lot
func removeLot(client *ApiClient, lotID string) tea.Cmd {
	return func() tea.Msg {
		if err := client.RemoveLot(lotID); err != nil {
			return errorMsg{err: fmt.Sprintf("Error removing lot: %v", err)}
		}
		return lotRemovedMsg{}
	}
}

// inventoryRows flattens the snapshot into table rows, keeping the server's
// FEFO order within each ingredient
func inventoryRows(snap InventorySnapshot) []table.Row {
	var rows []table.Row
	for ingredient, lots := range snap.Lots {
		for _, lot := range lots {
			daysLeft := "-"
			if lot.DaysLeft != nil {
				daysLeft = strconv.Itoa(*lot.DaysLeft)
			}
			tier := lot.FreshnessTier
			switch tier {
			case "danger":
				tier = dangerStyle.Render(tier)
			case "warning":
				tier = warningStyle.Render(tier)
			}
			rows = append(rows, table.Row{
				ingredient,
				strconv.FormatFloat(lot.QuantityRemaining, 'f', -1, 64),
				lot.Unit,
				daysLeft,
				tier,
				lot.LotID,
			})
		}
	}
	return rows
}

// convertMatchesToItems converts API matches to list items
func convertMatchesToItems(matches []MatchResult) []list.Item {
	items := make([]list.Item, len(matches))
	for i, match := range matches {
		status := "ready to cook"
		if !match.CanCookNow {
			status = fmt.Sprintf("%d ingredients short", match.MissingCount)
		}
		desc := fmt.Sprintf("%.0f%% covered - %s - %.0f min", match.Coverage*100, status, match.TimeMinutes)
		if match.Economy != nil && match.Economy.CostToComplete > 0 {
			desc += fmt.Sprintf(" - %.2f %s to complete", match.Economy.CostToComplete, match.Economy.Currency)
		}
		items[i] = matchItem{
			recipeID: match.RecipeID,
			title:    fmt.Sprintf("%s (%.2f)", match.RecipeName, match.Score),
			desc:     desc,
		}
	}
	return items
}

// receiptView creates a detailed view of a cook receipt
func receiptView(receipt Receipt) string {
	view := titleStyle.Render(fmt.Sprintf("Cooked %s", receipt.RecipeID)) + "\n\n"
	view += fmt.Sprintf("Receipt: %s\n", receipt.ReceiptID)
	view += fmt.Sprintf("Servings: x%g\n", receipt.ServingsMultiplier)
	view += fmt.Sprintf("Committed: %s\n", receipt.CommittedAt.Format(time.RFC1123))

	view += "\nConsumed:\n"
	for i, line := range receipt.Lines {
		view += fmt.Sprintf("%d. %s: %g %s (%g %s left)\n", i+1, line.Name, line.Quantity, line.Unit, line.RemainingAfter, line.Unit)
	}

	if receipt.Economy != nil {
		view += fmt.Sprintf("\nValue used: %.2f %s\n", receipt.Economy.UsedValue, receipt.Economy.Currency)
		view += fmt.Sprintf("Waste risk saved: %.2f %s\n", receipt.Economy.WasteRiskSaved, receipt.Economy.Currency)
	}

	view += "\nPress 'enter' or 'esc' to go back to matches"
	return view
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v", err)
		os.Exit(1)
	}
}
