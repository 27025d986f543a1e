package stitch

import "regexp"

var (
	mentionRegex     = regexp.MustCompile(`<@([A-Z0-9]+)>`)
	channelRegex     = regexp.MustCompile(`<#([A-Z0-9]+)\|([^>]+)>`)
	labeledLinkRegex = regexp.MustCompile(`<([^|>]+)\|([^>]+)>`)
	bareLinkRegex    = regexp.MustCompile(`<([^>]+)>`)
)

// CleanText переводит служебную разметку сообщения в читаемый вид:
// упоминания подменяются отображаемыми именами из карты, ссылки на каналы
// и URL разворачиваются. Порядок замен важен: сначала упоминания и каналы,
// затем ссылки с подписью, в конце голые скобки.
func CleanText(text string, displayNames map[string]string) string {
	cleaned := mentionRegex.ReplaceAllStringFunc(text, func(match string) string {
		id := mentionRegex.FindStringSubmatch(match)[1]
		if name, ok := displayNames[id]; ok {
			return "@" + name
		}
		return "@" + id
	})
	cleaned = channelRegex.ReplaceAllString(cleaned, "#$2")
	cleaned = labeledLinkRegex.ReplaceAllString(cleaned, "$2 ($1)")
	cleaned = bareLinkRegex.ReplaceAllString(cleaned, "$1")
	return cleaned
}
