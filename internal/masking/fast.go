package masking

import "regexp"

type rule struct {
	re   *regexp.Regexp
	repl string
}

func r(pattern, repl string) rule {
	return rule{re: regexp.MustCompile(pattern), repl: repl}
}

// Rules run in order. Case and document numbers go first because they embed
// years; dates go before places so "2024年" is not read as a place.
var (
	numberRules = []rule{
		r(`[（(]\d{4}[）)][\x{4e00}-\x{9fa5}]{0,10}\d{1,10}[\x{4e00}-\x{9fa5}]{0,5}\d{0,10}号`, "（某年）某号"),
		r(`[\x{4e00}-\x{9fa5}]+字[〔\[]\d{4}[〕\]]\d+号`, "某字〔某年〕某号"),
		r(`(公民身份号码|身份证号码|身份证号)[：:]?[0-9Xx]{15,18}`, "${1}XXX"),
		r(`(账号|账户)[：:]?\d{10,}`, "${1}XXX"),
		r(`\d{17}[0-9Xx]`, "XXX"),
		r(`\d{2,4}[×*Xx]{4,}\d{2,4}`, "XXX"),
		r(`1[3-9]\d{9}`, "XXX"),
		r(`\d{3,4}[-－]\d{7,8}`, "XXX"),
	}

	dateRules = []rule{
		r(`[〇零一二三四五六七八九十]+年[一二三四五六七八九十]+月[一二三四五六七八九十]+[日号]`, "某年某月某日"),
		r(`\d{4}年\d{1,2}月\d{1,2}日`, "某年某月某日"),
		r(`\d{4}[-/.]\d{1,2}[-/.]\d{1,2}`, "某年某月某日"),
		r(`\d{4}年\d{1,2}月`, "某年某月"),
		r(`\d{4}年`, "某年"),
		r(`某年某月某日\d{1,2}时\d{1,2}分`, "某年某月某日某时某分"),
		r(`某年某月某日\d{1,2}时`, "某年某月某日某时"),
	}

	placeRules = []rule{
		r(`[\x{4e00}-\x{9fa5}]{2,3}(?:省|自治区)`, "某省"),
		r(`[\x{4e00}-\x{9fa5}]{2,3}市`, "某市"),
		r(`某市[\x{4e00}-\x{9fa5}]{2,3}(?:区|县)`, "某市某区"),
		r(`[\x{4e00}-\x{9fa5}]{2,3}县`, "某县"),
		r(`[\x{4e00}-\x{9fa5}]+\d+号楼\d+单元\d+(?:号|室)`, "某地址"),
	}

	nameRules = []rule{
		r(`(原审原告|原审被告|被上诉人|上诉人|被申请人|申请人|原告|被告|证人|审判长|审判员|书记员|法官助理|委托诉讼代理人|委托代理人|诉讼代理人)([：:]?)[\x{4e00}-\x{9fa5}]{2,4}?([，。；、,\s]|$)`, "${1}${2}某${3}"),
		r(`[\x{4e00}-\x{9fa5}]某某`, "某"),
	}
)

// Fast masks identifiers, phone and account numbers, case numbers, dates,
// administrative place names and the names that follow a party or court
// role. It is deterministic and never calls out.
func Fast(text string) string {
	if text == "" {
		return text
	}
	for _, rules := range [][]rule{numberRules, dateRules, placeRules, nameRules} {
		for _, rl := range rules {
			text = rl.re.ReplaceAllString(text, rl.repl)
		}
	}
	return text
}
