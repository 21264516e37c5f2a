package lang

import "github.com/roach88/semstore/internal/ir"

// coreNamespaces are the wiki's built-in namespaces; locales only rename
// the semantic ones.
var coreNamespaces = map[ir.Namespace]string{
	ir.NSSpecial:  "Special",
	ir.NSMain:     "",
	ir.NSTalk:     "Talk",
	ir.NSUser:     "User",
	ir.NSCategory: "Category",
}

var english = newTable("en",
	map[ir.Namespace]string{
		ir.NSProperty:     "Property",
		ir.NSPropertyTalk: "Property_talk",
		ir.NSType:         "Type",
		ir.NSTypeTalk:     "Type_talk",
		ir.NSConcept:      "Concept",
		ir.NSConceptTalk:  "Concept_talk",
	},
	nil,
	map[string]string{
		ir.PropType:             "Has type",
		ir.PropAllowsValue:      "Allows value",
		ir.PropAllowsList:       "Has fields",
		ir.PropConversion:       "Corresponds to",
		ir.PropDisplayUnit:      "Display units",
		ir.PropModificationDate: "Modification date",
		ir.PropCreationDate:     "Creation date",
		ir.PropLastEditor:       "Last editor is",
		ir.PropNewPage:          "Is a new page",
		ir.PropEditProtection:   "Is edit protected",
		ir.PropConcept:          "Concept description",
		ir.PropRedirect:         "Redirects to",
		"_URI":                  "Equivalent URI",
		"_SUBP":                 "Subproperty of",
		"_IMPO":                 "Imported from",
		"_SERV":                 "Provides service",
		"_ERRP":                 "Has improper value for",
	},
	map[string]string{
		"Display unit": ir.PropDisplayUnit,
	},
	map[string]string{
		"_wpg": "Page",
		"_str": "String",
		"_txt": "Text",
		"_cod": "Code",
		"_boo": "Boolean",
		"_num": "Number",
		"_geo": "Geographic coordinate",
		"_tem": "Temperature",
		"_dat": "Date",
		"_ema": "Email",
		"_uri": "URL",
		"_anu": "Annotation URI",
	},
	map[string]string{
		"Float":       "_num",
		"Integer":     "_num",
		"Enumeration": "_str",
		"URI":         "_uri",
	},
)

var traditionalChinese = newTable("zh-tw",
	map[ir.Namespace]string{
		ir.NSProperty:     "性質",
		ir.NSPropertyTalk: "性質討論",
		ir.NSType:         "型態",
		ir.NSTypeTalk:     "型態討論",
		ir.NSConcept:      "概念",
		ir.NSConceptTalk:  "概念討論",
	},
	nil,
	map[string]string{
		ir.PropType:             "設有型態",
		"_URI":                  "對應的URI",
		"_SUBP":                 "所屬的子性質",
		ir.PropDisplayUnit:      "顯示單位",
		"_IMPO":                 "輸入來源",
		ir.PropConversion:       "符合於",
		"_SERV":                 "提供服務",
		ir.PropAllowsValue:      "允許值",
		ir.PropModificationDate: "Modification date",
		"_ERRP":                 "Has improper value for",
	},
	nil,
	map[string]string{
		"_wpg": "頁面",
		"_str": "字串",
		"_txt": "文字",
		"_cod": "Code",
		"_boo": "布林",
		"_num": "數字",
		"_geo": "地理學的座標",
		"_tem": "溫度",
		"_dat": "日期",
		"_ema": "Email",
		"_uri": "URL",
		"_anu": "URI的註解",
	},
	map[string]string{
		"浮點數": "_num",
		"整數":  "_num",
		"列舉":  "_str",
	},
)

var registry = map[string]*Table{
	english.code:            english,
	traditionalChinese.code: traditionalChinese,
}

// English aliases accepted by every locale.
var (
	englishNamespaceAliases = aliasIndex(english.namespaces)
	englishPropertyAliases  = foldKeys(mergeAliases(invert(english.properties), english.propertyAliases))
)

func newTable(code string, namespaces map[ir.Namespace]string, nsAliases map[string]ir.Namespace,
	properties, propAliases, datatypes, typeAliases map[string]string) *Table {
	t := &Table{
		code:             code,
		namespaces:       namespaces,
		namespaceAliases: map[string]ir.Namespace{},
		properties:       properties,
		propertyAliases:  foldKeys(propAliases),
		datatypes:        datatypes,
		datatypeAliases:  foldKeys(typeAliases),
	}
	for alias, ns := range nsAliases {
		t.namespaceAliases[aliasKey(alias)] = ns
	}
	return t
}

func aliasIndex(names map[ir.Namespace]string) map[string]ir.Namespace {
	out := make(map[string]ir.Namespace, len(names))
	for ns, name := range names {
		out[aliasKey(name)] = ns
	}
	return out
}

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func mergeAliases(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func foldKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[aliasKey(k)] = v
	}
	return out
}
