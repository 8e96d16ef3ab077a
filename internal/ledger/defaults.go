package ledger

import "fintrack/internal/core"

// DefaultCategories is the category set a fresh ledger starts with.
func DefaultCategories() []core.Category {
	return []core.Category{
		{Name: "Salary", Kind: core.Income, Description: "Regular employment income", Color: "#10b981"},
		{Name: "Freelance", Kind: core.Income, Description: "Freelance work income", Color: "#059669"},
		{Name: "Investment", Kind: core.Income, Description: "Investment returns", Color: "#0d9488"},
		{Name: "Business", Kind: core.Income, Description: "Business income", Color: "#0891b2"},
		{Name: "Other Income", Kind: core.Income, Description: "Other sources of income", Color: "#3b82f6"},
		{Name: "Food & Dining", Kind: core.Expense, Description: "Restaurants, groceries, etc.", Color: "#ef4444"},
		{Name: "Transportation", Kind: core.Expense, Description: "Gas, public transit, car maintenance", Color: "#f97316"},
		{Name: "Shopping", Kind: core.Expense, Description: "Clothes, electronics, misc shopping", Color: "#f59e0b"},
		{Name: "Entertainment", Kind: core.Expense, Description: "Movies, games, hobbies", Color: "#eab308"},
		{Name: "Bills & Utilities", Kind: core.Expense, Description: "Electricity, water, internet, phone", Color: "#84cc16"},
		{Name: "Healthcare", Kind: core.Expense, Description: "Medical expenses, insurance", Color: "#22c55e"},
		{Name: "Education", Kind: core.Expense, Description: "Books, courses, tuition", Color: "#06b6d4"},
		{Name: "Travel", Kind: core.Expense, Description: "Vacation, business travel", Color: "#3b82f6"},
		{Name: "Housing", Kind: core.Expense, Description: "Rent, mortgage, home maintenance", Color: "#6366f1"},
		{Name: "Insurance", Kind: core.Expense, Description: "Car, home, life insurance", Color: "#8b5cf6"},
		{Name: "Gifts & Donations", Kind: core.Expense, Description: "Gifts, charity donations", Color: "#a855f7"},
		{Name: "Personal Care", Kind: core.Expense, Description: "Haircuts, cosmetics, gym", Color: "#ec4899"},
		{Name: "Other Expenses", Kind: core.Expense, Description: "Miscellaneous expenses", Color: "#6b7280"},
	}
}
