package session

import (
	"strings"

	"github.com/redilah/CulinaryAI/runtime/template"
)

// Ingredient is one line of the recipe's ingredient list.
type Ingredient struct {
	Name     string `json:"name" yaml:"name"`
	Quantity string `json:"quantity,omitempty" yaml:"quantity,omitempty"`
}

// Recipe is the cooking context the assistant is tied to.
type Recipe struct {
	Title       string       `json:"title" yaml:"title"`
	Ingredients []Ingredient `json:"ingredients" yaml:"ingredients"`
}

// defaultQuantity is used for ingredients without a quantity ("to taste").
const defaultQuantity = "sesuai selera"

const unknownName = "Belum diketahui"

const personaTemplate = `Kamu adalah Nary, asisten masak personal yang sangat cerdas, hangat, dan sopan.

PERATURAN KOMUNIKASI:
{{name_rules}}
3. Gunakan bahasa Indonesia yang santai tapi tetap sangat sopan.
4. Kamu bisa melihat melalui kamera. Jika user menunjukkan bahan atau proses masak, berikan saran atau komentar yang relevan.
5. JANGAN gunakan markdown seperti bintang (*) atau pagar (#).

KONTEKS:
- Nama user: {{user_name}}.
- Masakan: {{recipe_title}}.
- Bahan: {{ingredients}}.
- Langkah saat ini: {{current_step}}.`

const (
	askNameRules = `1. Kamu belum tahu nama user. Sapa sekali dengan: "Halo, aku Nary asisten masakmu. Boleh aku tahu namamu agar kita lebih akrab?".
2. Setelah user menyebutkan namanya, panggil namanya di setiap respon.`
	knownNameRules = `1. Kamu sudah tahu nama user, jangan tanyakan lagi.
2. Panggil user dengan nama {{user_name}} di setiap respon.`
)

// FormatIngredients renders ingredients as "name (quantity)" joined by ", ".
func FormatIngredients(ingredients []Ingredient) string {
	parts := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		qty := strings.TrimSpace(ing.Quantity)
		if qty == "" {
			qty = defaultQuantity
		}
		parts = append(parts, ing.Name+" ("+qty+")")
	}
	return strings.Join(parts, ", ")
}

// BuildInstruction composes the system instruction for one session. When
// name is empty the instruction asks the model to request it once.
func BuildInstruction(recipe Recipe, step, name string) (string, error) {
	rules, userName := askNameRules, unknownName
	if name = strings.TrimSpace(name); name != "" {
		rules, userName = knownNameRules, name
	}

	r := template.NewRenderer()
	vars := map[string]string{
		"recipe_title": recipe.Title,
		"current_step": step,
	}
	if err := r.ValidateRequiredVars([]string{"recipe_title"}, vars); err != nil {
		return "", err
	}
	rules, err := r.Render(rules, map[string]string{"user_name": userName})
	if err != nil {
		return "", err
	}
	return r.Render(personaTemplate, r.MergeVars(vars, map[string]string{
		"name_rules":  rules,
		"user_name":   userName,
		"ingredients": FormatIngredients(recipe.Ingredients),
	}))
}
